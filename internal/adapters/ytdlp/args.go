package ytdlp

import "strconv"

// Format selectors and argument sets shared by every platform.

// VideoSelector returns "best video at or below height plus best audio,
// else best combined at or below height, else best". A zero height means
// no ceiling.
func VideoSelector(height int) string {
	if height <= 0 {
		return "bestvideo+bestaudio/best"
	}
	h := strconv.Itoa(height)
	return "bestvideo[height<=" + h + "]+bestaudio/best[height<=" + h + "]/best"
}

// FormatSelector pins a listed format id, merging best audio into it when
// the format carries none, and falls back to fallback when the id is no
// longer offered.
func FormatSelector(id string, hasAudio bool, fallback string) string {
	if hasAudio {
		return id + "/" + fallback
	}
	return id + "+bestaudio/" + id + "/" + fallback
}

// VideoArgs selects a video format and merges into an mp4 container.
func VideoArgs(selector string) []string {
	return []string{"-f", selector, "--merge-output-format", "mp4"}
}

// AudioArgs extracts the best audio track and transcodes it to mp3.
func AudioArgs() []string {
	return []string{
		"-f", "bestaudio",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "0",
	}
}

// SelectionArgs returns only the -f part of a media argument set, which is
// all a size lookup needs.
func SelectionArgs(media []string) []string {
	for i := 0; i+1 < len(media); i++ {
		if media[i] == "-f" {
			return []string{"-f", media[i+1]}
		}
	}
	return nil
}

func metadataArgs() []string {
	return []string{"--dump-json", "--no-warnings", "--no-check-certificate", "--no-playlist"}
}

func playlistArgs() []string {
	return []string{"--dump-json", "--flat-playlist", "--no-warnings", "--no-check-certificate"}
}

func streamArgs() []string {
	return []string{"-o", "-", "--no-warnings", "--no-check-certificate", "--no-playlist"}
}

func fileArgs(path string) []string {
	return []string{
		"-o", path,
		"--no-warnings",
		"--no-check-certificate",
		"--no-playlist",
		"--no-continue",
		"--extractor-retries", "3",
		"--fragment-retries", "3",
		"--retry-sleep", "1",
	}
}

func sizeArgs() []string {
	return []string{"--print", "%(filesize)s", "--no-warnings", "--no-check-certificate", "--no-playlist"}
}

// join concatenates argument groups, ending with the target URL.
func join(url string, groups ...[]string) []string {
	n := 1
	for _, g := range groups {
		n += len(g)
	}
	out := make([]string, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return append(out, url)
}
