package formats

import (
	"testing"

	"socialdownloader/internal/core/domain"
)

func video(id string, height int, size int64, tbr float64) domain.RawFormat {
	return domain.RawFormat{FormatID: id, Height: height, VCodec: "avc1", Filesize: size, TBR: tbr}
}

func TestNormalizeExample(t *testing.T) {
	raw := []domain.RawFormat{
		video("a", 1080, 5000000, 0),
		video("b", 1080, 6000000, 0),
		video("c", 720, 3000000, 0),
		video("d", 480, 1500000, 0),
	}
	got := Normalize(raw)

	want := []struct {
		height int
		size   int64
		id     string
	}{
		{1080, 6000000, "b"},
		{720, 3000000, "c"},
		{480, 1500000, "d"},
	}
	if len(got) != len(want) {
		t.Fatalf("Normalize() returned %d options, want %d", len(got), len(want))
	}
	for i, w := range want {
		if *got[i].Height != w.height || *got[i].Filesize != w.size || got[i].FormatID != w.id {
			t.Fatalf("option %d = {%d %d %s}, want %+v", i, *got[i].Height, *got[i].Filesize, got[i].FormatID, w)
		}
	}
}

func TestNormalizeOneEntryPerHeight(t *testing.T) {
	raw := []domain.RawFormat{
		video("1", 720, 0, 1000),
		video("2", 720, 0, 2500),
		video("3", 720, 0, 1500),
		video("4", 360, 10, 0),
		video("5", 360, 0, 0),
		{FormatID: "audio", VCodec: "none", Height: 0, Filesize: 99999999},
		{FormatID: "storyboard", VCodec: "none", Height: 90},
	}
	got := Normalize(raw)
	if len(got) != 2 {
		t.Fatalf("Normalize() = %d options, want 2", len(got))
	}
	if got[0].FormatID != "2" {
		t.Fatalf("720p pick = %s, want highest bitrate 2", got[0].FormatID)
	}
	if got[1].FormatID != "4" {
		t.Fatalf("360p pick = %s, want larger size 4", got[1].FormatID)
	}
	seen := map[int]bool{}
	for _, o := range got {
		if seen[*o.Height] {
			t.Fatalf("duplicate height %d", *o.Height)
		}
		seen[*o.Height] = true
	}
}

func TestNormalizeUsesApproxSize(t *testing.T) {
	got := Normalize([]domain.RawFormat{
		{FormatID: "x", Height: 480, VCodec: "vp9", FilesizeApprox: 700},
		{FormatID: "y", Height: 480, VCodec: "vp9", Filesize: 600},
	})
	if len(got) != 1 || got[0].FormatID != "x" || *got[0].Filesize != 700 {
		t.Fatalf("Normalize() = %+v, want x with 700", got)
	}
}

func TestNormalizeFallback(t *testing.T) {
	tests := []struct {
		name string
		raw  []domain.RawFormat
		id   string
	}{
		{
			name: "no heights",
			raw: []domain.RawFormat{
				{FormatID: "aud", VCodec: "none"},
				{FormatID: "vid", VCodec: "h264"},
			},
			id: "vid",
		},
		{
			name: "audio only source",
			raw:  []domain.RawFormat{{FormatID: "m4a", VCodec: "none"}},
			id:   "m4a",
		},
	}
	for _, tt := range tests {
		got := Normalize(tt.raw)
		if len(got) != 1 {
			t.Fatalf("%s: Normalize() = %d options, want 1", tt.name, len(got))
		}
		if got[0].FormatID != tt.id || *got[0].Height != FallbackHeight {
			t.Fatalf("%s: Normalize() = {%s %d}, want {%s %d}", tt.name, got[0].FormatID, *got[0].Height, tt.id, FallbackHeight)
		}
	}
	if got := Normalize(nil); len(got) != 0 {
		t.Fatalf("Normalize(nil) = %v, want empty", got)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		height int
		want   string
	}{
		{2160, "2160p (4K)"},
		{1440, "1440p (2K)"},
		{1080, "1080p (Full HD)"},
		{720, "720p (HD)"},
		{480, "480p (SD)"},
		{360, "360p"},
		{144, "144p"},
	}
	for _, tt := range tests {
		if got := Label(tt.height); got != tt.want {
			t.Fatalf("Label(%d) = %q, want %q", tt.height, got, tt.want)
		}
	}
}

func TestWithAudioAndResolve(t *testing.T) {
	opts := WithAudio(Normalize([]domain.RawFormat{video("137", 1080, 10, 0), video("22", 720, 5, 0)}))
	last := opts[len(opts)-1]
	if !last.IsAudio() || last.FormatID != AudioFormatID {
		t.Fatalf("last option = %+v, want audio bucket", last)
	}

	o, ok := Resolve(opts, "22")
	if !ok || *o.Height != 720 {
		t.Fatalf("Resolve(22) = %+v, %v, want 720p", o, ok)
	}
	if _, ok := Resolve(opts, "missing"); ok {
		t.Fatalf("Resolve(missing) ok = true")
	}
}
