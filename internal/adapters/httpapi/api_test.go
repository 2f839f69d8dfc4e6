package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"socialdownloader/internal/adapters/localstorage"
	"socialdownloader/internal/batch"
	"socialdownloader/internal/core/domain"
	"socialdownloader/internal/core/ports"
	"socialdownloader/internal/fallback"
	"socialdownloader/internal/platforms"
	"socialdownloader/internal/service"
)

type fakeExtractor struct {
	mu   sync.Mutex
	args [][]string

	metadata func() (*domain.RawMetadata, error)
	playlist func() ([]domain.RawPlaylistEntry, error)
	stream   func() (ports.MediaStream, error)
	download func(path string) error
}

func (f *fakeExtractor) record(args []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.args = append(f.args, append([]string(nil), args...))
}

func (f *fakeExtractor) sawArg(want string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, args := range f.args {
		for _, a := range args {
			if strings.Contains(a, want) {
				return true
			}
		}
	}
	return false
}

func (f *fakeExtractor) FetchMetadata(_ context.Context, _ string, args []string) (*domain.RawMetadata, error) {
	f.record(args)
	return f.metadata()
}

func (f *fakeExtractor) FetchPlaylist(_ context.Context, _ string, args []string) ([]domain.RawPlaylistEntry, error) {
	f.record(args)
	return f.playlist()
}

func (f *fakeExtractor) OpenStream(_ context.Context, _ string, args []string) (ports.MediaStream, error) {
	f.record(args)
	return f.stream()
}

func (f *fakeExtractor) DownloadToFile(_ context.Context, _, path string, args []string) error {
	f.record(args)
	return f.download(path)
}

func (f *fakeExtractor) LookupSize(context.Context, string, []string) (int64, bool) { return 0, false }

type memStream struct {
	r       io.Reader
	waitErr error
}

func (s *memStream) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *memStream) Wait() error                { return s.waitErr }
func (s *memStream) Kill() error                { return nil }

func streamOf(data string, waitErr error) func() (ports.MediaStream, error) {
	return func() (ports.MediaStream, error) {
		return &memStream{r: strings.NewReader(data), waitErr: waitErr}, nil
	}
}

func newTestServer(t *testing.T, ex *fakeExtractor) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := localstorage.NewLocalStorage(t.TempDir())
	svc := service.NewService(ex, platforms.Defaults(), &fallback.Runner{Logger: logger}, store,
		batch.NewAssembler(store, 0, logger), logger)
	api := &API{
		Service: svc,
		Logger:  logger,
		Origins: []string{"https://app.example.com"},
		Now:     func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

var clip = &domain.RawMetadata{
	Title:     "Clip",
	Thumbnail: "https://i.ytimg.com/clip.jpg",
	Duration:  61,
	Channel:   "Chan",
	Formats: []domain.RawFormat{
		{FormatID: "22", Height: 720, VCodec: "avc1", Filesize: 100},
		{FormatID: "18", Height: 360, VCodec: "avc1", Filesize: 50},
	},
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	body := decode(t, resp)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" || body["timestamp"] != "2024-05-01T12:00:00Z" {
		t.Fatalf("GET /health = %d %v", resp.StatusCode, body)
	}
}

func TestInfoValidation(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{})
	tests := []struct {
		path, body string
		want       string
	}{
		{"/api/video/info", `{}`, "URL is required"},
		{"/api/video/info", `{"url":"https://example.com/v"}`, "Invalid Facebook URL"},
		{"/api/tiktok/info", `{"url":"https://www.instagram.com/p/x/"}`, "Invalid TikTok URL"},
		{"/api/youtube/playlist/info", `{"url":"https://www.youtube.com/watch?v=abc"}`, "Invalid YouTube playlist URL"},
	}
	for _, tt := range tests {
		resp := post(t, srv, tt.path, tt.body)
		body := decode(t, resp)
		if resp.StatusCode != http.StatusBadRequest || body["success"] != false || body["error"] != tt.want {
			t.Fatalf("POST %s %s = %d %v, want 400 %q", tt.path, tt.body, resp.StatusCode, body, tt.want)
		}
	}
}

func TestYouTubeInfo(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{metadata: func() (*domain.RawMetadata, error) { return clip, nil }})

	resp := post(t, srv, "/api/youtube/info", `{"url":"https://youtu.be/abc","extra":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Success bool        `json:"success"`
		Data    YouTubeInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !out.Success || out.Data.Title != "Clip" || out.Data.Channel != "Chan" {
		t.Fatalf("response = %+v", out)
	}
	if len(out.Data.VideoFormats) != 2 || len(out.Data.AudioFormats) != 1 || len(out.Data.Formats) != 3 {
		t.Fatalf("formats = %+v", out.Data)
	}
	if out.Data.AudioFormats[0].Height != nil || out.Data.AudioFormats[0].FormatID != "bestaudio" {
		t.Fatalf("audio option = %+v", out.Data.AudioFormats[0])
	}
}

func TestErrorStatuses(t *testing.T) {
	const (
		tiktok   = `{"url":"https://www.tiktok.com/@u/video/1"}`
		facebook = `{"url":"https://www.facebook.com/watch?v=1"}`
	)
	tests := []struct {
		name   string
		path   string
		body   string
		err    error
		status int
	}{
		{"login", "/api/tiktok/info", tiktok, &domain.ExtractionError{ExitCode: 1, Reason: domain.ErrLoginRequired}, http.StatusForbidden},
		{"removed", "/api/tiktok/info", tiktok, &domain.ExtractionError{ExitCode: 1, Reason: domain.ErrUnavailable}, http.StatusNotFound},
		{"throttled", "/api/tiktok/info", tiktok, &domain.ExtractionError{ExitCode: 1, Reason: domain.ErrRateLimited}, http.StatusTooManyRequests},
		{"unclassified", "/api/tiktok/info", tiktok, &domain.ExtractionError{ExitCode: 1}, http.StatusTooManyRequests},
		{"missing binary", "/api/tiktok/info", tiktok, domain.ErrExtractorUnavailable, http.StatusServiceUnavailable},
		{"bad json", "/api/video/info", facebook, domain.ErrParseFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeExtractor{metadata: func() (*domain.RawMetadata, error) { return nil, tt.err }})
			resp := post(t, srv, tt.path, tt.body)
			body := decode(t, resp)
			if resp.StatusCode != tt.status || body["success"] != false || body["error"] == "" {
				t.Fatalf("status = %d body %v, want %d", resp.StatusCode, body, tt.status)
			}
			if _, ok := body["details"]; !ok {
				t.Fatalf("body %v has no details", body)
			}
		})
	}
}

func TestNoFormats(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{metadata: func() (*domain.RawMetadata, error) {
		return &domain.RawMetadata{Title: "empty"}, nil
	}})
	resp := post(t, srv, "/api/video/info", `{"url":"https://www.facebook.com/watch?v=1"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDownloadStreams(t *testing.T) {
	ex := &fakeExtractor{stream: streamOf("video-bytes", nil)}
	srv := newTestServer(t, ex)

	resp := post(t, srv, "/api/youtube/download", `{"url":"https://youtu.be/abc","height":"720","filename":"My Clip"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil || string(body) != "video-bytes" {
		t.Fatalf("body = %q, %v", body, err)
	}
	want := map[string]string{
		"Content-Type":           "video/mp4",
		"Content-Disposition":    `attachment; filename="My_Clip.mp4"`,
		"Cache-Control":          "no-cache",
		"X-Content-Type-Options": "nosniff",
	}
	for k, v := range want {
		if got := resp.Header.Get(k); got != v {
			t.Fatalf("%s = %q, want %q", k, got, v)
		}
	}
	if !ex.sawArg("height<=720") {
		t.Fatalf("numeric string height was not passed to the selector: %v", ex.args)
	}
}

func TestDownloadAudioRoute(t *testing.T) {
	ex := &fakeExtractor{stream: streamOf("mp3-bytes", nil)}
	srv := newTestServer(t, ex)

	resp := post(t, srv, "/api/video/download-audio", `{"url":"https://www.facebook.com/watch?v=1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("Content-Type = %q, want audio/mpeg", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="facebook-audio.mp3"` {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	if !ex.sawArg("mp3") {
		t.Fatalf("audio extraction args missing: %v", ex.args)
	}
}

func TestDownloadRejectsBadHeight(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{})
	for _, body := range []string{
		`{"url":"https://www.facebook.com/watch?v=1"}`,
		`{"url":"https://www.facebook.com/watch?v=1","height":"abc"}`,
		`{"url":"https://www.facebook.com/watch?v=1","height":99999}`,
	} {
		resp := post(t, srv, "/api/video/download", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("POST %s = %d, want 400", body, resp.StatusCode)
		}
		if got := decode(t, resp); got["success"] != false {
			t.Fatalf("POST %s body = %v", body, got)
		}
	}
}

func TestDownloadEarlyFailureIsJSON(t *testing.T) {
	exit := &domain.ExtractionError{ExitCode: 1, Reason: domain.ErrUnavailable}
	srv := newTestServer(t, &fakeExtractor{stream: streamOf("", exit)})

	resp := post(t, srv, "/api/youtube/download", `{"url":"https://youtu.be/abc","type":"audio"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "json") {
		t.Fatalf("Content-Type = %q, want JSON", ct)
	}
}

func TestDownloadMidStreamFailureTruncates(t *testing.T) {
	exit := &domain.ExtractionError{ExitCode: 1}
	srv := newTestServer(t, &fakeExtractor{stream: streamOf("partial", exit)})

	resp := post(t, srv, "/api/youtube/download", `{"url":"https://youtu.be/abc"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if _, err := io.ReadAll(resp.Body); err == nil {
		t.Fatalf("reading a truncated download succeeded")
	}
}

func TestDownloadStagedFile(t *testing.T) {
	ex := &fakeExtractor{download: func(path string) error {
		return os.WriteFile(path, []byte("merged-mp4"), 0o644)
	}}
	srv := newTestServer(t, ex)

	resp := post(t, srv, "/api/instagram/download", `{"url":"https://www.instagram.com/reel/abc/","height":1080}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.ContentLength != int64(len("merged-mp4")) {
		t.Fatalf("Content-Length = %d", resp.ContentLength)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="instagram_video_1714564800000.mp4"` {
		t.Fatalf("Content-Disposition = %q", cd)
	}
}

var playlistEntries = []domain.RawPlaylistEntry{
	{ID: "a", Title: "One", PlaylistTitle: "My Mix"},
	{ID: "b", Title: "[Private video]"},
	{ID: "c", Title: "Two"},
	{ID: "d", Title: "Three"},
}

func TestPlaylistInfo(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{playlist: func() ([]domain.RawPlaylistEntry, error) { return playlistEntries, nil }})

	resp := post(t, srv, "/api/youtube/playlist/info", `{"url":"https://www.youtube.com/playlist?list=PL1"}`)
	var out struct {
		Data PlaylistInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if out.Data.Title != "My Mix" || out.Data.VideoCount != 3 {
		t.Fatalf("playlist = %+v", out.Data)
	}
	if v := out.Data.Videos[1]; v.Index != 2 || v.OriginalIndex != 3 || v.Title != "Two" {
		t.Fatalf("second video = %+v", v)
	}
}

func TestPlaylistDownloadSelected(t *testing.T) {
	ex := &fakeExtractor{
		playlist: func() ([]domain.RawPlaylistEntry, error) { return playlistEntries, nil },
		download: func(path string) error { return os.WriteFile(path, []byte("x"), 0o644) },
	}
	srv := newTestServer(t, ex)

	resp := post(t, srv, "/api/youtube/playlist/download-selected",
		`{"url":"https://www.youtube.com/playlist?list=PL1","type":"audio","selectedIndices":[1,3]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="My_Mix.zip"` {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "01_one.mp3,03_three.mp3" {
		t.Fatalf("members = %v", names)
	}
}

func TestPlaylistDownloadSelectedRequiresSelection(t *testing.T) {
	ex := &fakeExtractor{playlist: func() ([]domain.RawPlaylistEntry, error) { return playlistEntries, nil }}
	srv := newTestServer(t, ex)

	for _, body := range []string{
		`{"url":"https://www.youtube.com/playlist?list=PL1"}`,
		`{"url":"https://www.youtube.com/playlist?list=PL1","selectedIndices":[]}`,
	} {
		resp := post(t, srv, "/api/youtube/playlist/download-selected", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("POST %s = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestRouteNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{})
	resp := post(t, srv, "/api/vimeo/info", `{}`)
	body := decode(t, resp)
	if resp.StatusCode != http.StatusNotFound || body["error"] != "Route not found" {
		t.Fatalf("unknown route = %d %v", resp.StatusCode, body)
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, &fakeExtractor{})

	preflight := func(origin string) *http.Response {
		req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/youtube/info", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", "POST")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("preflight: %v", err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	for _, origin := range []string{"https://app.example.com", "http://localhost:5173"} {
		resp := preflight(origin)
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("preflight from %s = %d, want 204", origin, resp.StatusCode)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != origin {
			t.Fatalf("Allow-Origin = %q, want %q", got, origin)
		}
		if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
			t.Fatalf("Allow-Credentials = %q", got)
		}
	}

	if resp := preflight("https://evil.example.com"); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("preflight from unknown origin = %d, want 403", resp.StatusCode)
	}
}

func TestToAPIError(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), domain.Invalid("height", "Invalid quality height"))
	status, body := toAPIError(wrapped)
	if status != http.StatusBadRequest || body.Message != "Invalid quality height" || body.Details != "" {
		t.Fatalf("toAPIError() = %d %+v", status, body)
	}

	status, body = toAPIError(errors.New("boom"))
	if status != http.StatusInternalServerError || body.Details != "boom" {
		t.Fatalf("toAPIError(unknown) = %d %+v", status, body)
	}
}

func TestHeightUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    Height
		wantErr bool
	}{
		{`720`, 720, false},
		{`"1080"`, 1080, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`"abc"`, 0, true},
		{`72.5`, 0, true},
	}
	for _, tt := range tests {
		var h Height
		err := json.Unmarshal([]byte(tt.in), &h)
		if (err != nil) != tt.wantErr || (!tt.wantErr && h != tt.want) {
			t.Fatalf("Unmarshal(%s) = %d, %v, want %d (err %v)", tt.in, h, err, tt.want, tt.wantErr)
		}
	}
}
