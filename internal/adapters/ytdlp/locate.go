package ytdlp

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"socialdownloader/internal/core/domain"
)

// candidatePaths are the install locations tried before falling back to
// PATH.
func candidatePaths() []string {
	paths := []string{
		"/usr/local/bin/yt-dlp",
		"/usr/bin/yt-dlp",
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".local", "bin", "yt-dlp"))
	}
	paths = append(paths, "/root/.local/bin/yt-dlp")
	if runtime.GOOS == "windows" {
		paths = append([]string{"yt-dlp.exe"}, paths...)
	}
	return paths
}

// Locate resolves the yt-dlp executable once at startup. A non-empty
// override must point at an executable file. Otherwise the usual install
// locations are tried, then PATH.
func Locate(override string) (string, error) {
	if override != "" {
		if isExecutable(override) {
			return override, nil
		}
		return "", fmt.Errorf("%w: %s is not an executable file", domain.ErrExtractorUnavailable, override)
	}

	for _, p := range candidatePaths() {
		if isExecutable(p) {
			return p, nil
		}
	}

	p, err := exec.LookPath("yt-dlp")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: not found in standard locations or PATH", domain.ErrExtractorUnavailable)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrExtractorUnavailable, err)
	}
	return p, nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
