// Package platforms describes how each supported site is driven through
// yt-dlp: which URLs it accepts, which client identities to rotate through
// and how media is selected and delivered.
package platforms

import (
	"fmt"
	"regexp"
	"strconv"

	"socialdownloader/internal/adapters/ytdlp"
	"socialdownloader/internal/core/domain"
	"socialdownloader/internal/fallback"
)

const (
	uaChromeDesktop = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaIPhoneSafari  = "Mozilla/5.0 (iPhone; CPU iPhone OS 15_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.5 Mobile/15E148 Safari/604.1"
	uaIPhoneIOS17   = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

	acceptLanguage = "Accept-Language:en-US,en;q=0.9"
)

var (
	facebookURL  = regexp.MustCompile(`(?i)^https?://(www\.|m\.|web\.|mbasic\.)?(facebook\.com|fb\.watch)/.+`)
	youtubeURL   = regexp.MustCompile(`^(https?://)?(www\.|m\.)?(youtube\.com/(watch\?v=|embed/|v/|shorts/)|youtu\.be/)`)
	playlistURL  = regexp.MustCompile(`^(https?://)?(www\.|m\.)?(youtube\.com/(playlist\?list=|watch\?.*list=))`)
	instagramURL = regexp.MustCompile(`^(https?://)?(www\.)?(instagram\.com)/(p|reel|reels|tv)/[\w-]+`)
	tiktokURL    = regexp.MustCompile(`^(https?://)?(www\.|vm\.|vt\.|m\.)?(tiktok\.com)/.+`)
)

// Delivery is how a variant hands video bytes to the client.
type Delivery int

const (
	// DeliverPipe streams yt-dlp stdout straight to the client.
	DeliverPipe Delivery = iota
	// DeliverFile downloads to a temp file first so yt-dlp can merge
	// separate audio and video tracks.
	DeliverFile
)

// Variant is the per-platform configuration of the extractor.
type Variant struct {
	Platform domain.Platform
	Name     string
	Pattern  *regexp.Regexp
	// PlaylistPattern is nil for platforms without playlist support.
	PlaylistPattern *regexp.Regexp

	// BaseArgs are passed on every invocation for this platform.
	BaseArgs []string
	// Strategies are the anonymous client identities, tried in order.
	Strategies []fallback.Strategy
	// CookieUserAgent accompanies the cookie jar when one is provisioned.
	CookieUserAgent string

	VideoDelivery Delivery
	// RequireHeight rejects video downloads without an explicit quality.
	RequireHeight bool
	// AudioOption adds the audio-only bucket to info responses.
	AudioOption bool

	selector    func(height int) string
	cookieStrat *fallback.Strategy
}

// Validate checks req against the platform's URL pattern and quality
// rules.
func (v *Variant) Validate(req domain.MediaRequest) error {
	if err := req.Validate(v.Pattern, v.Name); err != nil {
		return err
	}
	if v.RequireHeight && req.MediaType == domain.MediaVideo {
		if req.Height == 0 {
			return domain.Invalid("height", "URL and quality height are required")
		}
		if !domain.HeightInRange(req.Height) {
			return domain.Invalid("height", "Invalid quality height")
		}
	}
	if req.Height != 0 && !domain.HeightInRange(req.Height) {
		return domain.Invalid("height", "Invalid quality height")
	}
	return nil
}

// ValidatePlaylist checks a playlist URL.
func (v *Variant) ValidatePlaylist(url string) error {
	if v.PlaylistPattern == nil {
		return domain.Invalid("url", v.Name+" playlists are not supported")
	}
	return domain.MediaRequest{URL: url}.Validate(v.PlaylistPattern, v.Name+" playlist")
}

// Selector returns the yt-dlp format expression for a video download.
func (v *Variant) Selector(height int) string {
	if v.selector != nil {
		return v.selector(height)
	}
	return ytdlp.VideoSelector(height)
}

// MediaArgs returns the selection and post-processing arguments for a
// download. Audio is always extracted to mp3, never served as video.
func (v *Variant) MediaArgs(t domain.MediaType, height int) []string {
	var media []string
	if t == domain.MediaAudio {
		media = ytdlp.AudioArgs()
	} else {
		media = ytdlp.VideoArgs(v.Selector(height))
	}
	return append(append([]string{}, v.BaseArgs...), media...)
}

// FormatArgs is MediaArgs for a video pinned to a listed format id. The
// height selector stays as the fallback tail.
func (v *Variant) FormatArgs(id string, hasAudio bool, height int) []string {
	media := ytdlp.VideoArgs(ytdlp.FormatSelector(id, hasAudio, v.Selector(height)))
	return append(append([]string{}, v.BaseArgs...), media...)
}

// InfoArgs returns the arguments for a metadata call.
func (v *Variant) InfoArgs() []string {
	return append([]string{}, v.BaseArgs...)
}

// Delivery returns the delivery mode for a media type. Audio is always
// piped.
func (v *Variant) Delivery(t domain.MediaType) Delivery {
	if t == domain.MediaAudio {
		return DeliverPipe
	}
	return v.VideoDelivery
}

// FallbackChain returns the strategies to try, the cookie strategy first
// when one is provisioned.
func (v *Variant) FallbackChain() []fallback.Strategy {
	chain := make([]fallback.Strategy, 0, len(v.Strategies)+1)
	if v.cookieStrat != nil {
		chain = append(chain, *v.cookieStrat)
	}
	return append(chain, v.Strategies...)
}

// WithCookies returns a copy of v that tries the cookie jar at path before
// the anonymous strategies.
func (v *Variant) WithCookies(path string) *Variant {
	c := *v
	args := []string{"--cookies", path}
	if v.CookieUserAgent != "" {
		args = append(args, "--user-agent", v.CookieUserAgent)
	}
	c.cookieStrat = &fallback.Strategy{Name: "cookies", Args: args}
	return &c
}

// HasCookies reports whether a cookie jar is attached.
func (v *Variant) HasCookies() bool { return v.cookieStrat != nil }

// Registry maps each platform to its variant.
type Registry map[domain.Platform]*Variant

// Get returns the variant for p.
func (r Registry) Get(p domain.Platform) (*Variant, error) {
	v, ok := r[p]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported platform %q", domain.ErrInvalidInput, p)
	}
	return v, nil
}

// WithCookies attaches cookie jars by platform. Platforms without a jar
// keep their anonymous chain.
func (r Registry) WithCookies(paths map[domain.Platform]string) Registry {
	out := make(Registry, len(r))
	for p, v := range r {
		if path, ok := paths[p]; ok && path != "" {
			out[p] = v.WithCookies(path)
			continue
		}
		out[p] = v
	}
	return out
}

// Defaults returns the built-in variants for all four platforms.
func Defaults() Registry {
	return Registry{
		domain.PlatformFacebook:  Facebook(),
		domain.PlatformYouTube:   YouTube(),
		domain.PlatformInstagram: Instagram(),
		domain.PlatformTikTok:    TikTok(),
	}
}

// Detect returns the platform whose URL pattern matches url. Playlist
// URLs detect as YouTube.
func Detect(url string) (domain.Platform, bool) {
	for _, v := range []*Variant{Facebook(), YouTube(), Instagram(), TikTok()} {
		if v.Pattern.MatchString(url) || (v.PlaylistPattern != nil && v.PlaylistPattern.MatchString(url)) {
			return v.Platform, true
		}
	}
	return "", false
}

// Facebook has no fallback chain and requires an explicit quality.
func Facebook() *Variant {
	return &Variant{
		Platform:      domain.PlatformFacebook,
		Name:          "Facebook",
		Pattern:       facebookURL,
		VideoDelivery: DeliverPipe,
		RequireHeight: true,
	}
}

func YouTube() *Variant {
	return &Variant{
		Platform:        domain.PlatformYouTube,
		Name:            "YouTube",
		Pattern:         youtubeURL,
		PlaylistPattern: playlistURL,
		Strategies: []fallback.Strategy{
			{Name: "mobile-android", Args: []string{
				"--extractor-args", "youtube:player_client=android",
				"--user-agent", "com.google.android.youtube/17.36.4 (Linux; U; Android 12; GB) gzip",
			}},
			{Name: "mobile-ios", Args: []string{
				"--extractor-args", "youtube:player_client=ios",
				"--user-agent", "com.google.ios.youtube/17.36.4 (iPhone14,3; U; CPU iOS 15_6 like Mac OS X)",
			}},
			{Name: "tv-embed", Args: []string{
				"--extractor-args", "youtube:player_client=tv_embedded",
				"--user-agent", "Mozilla/5.0 (SMART-TV; LINUX; Tizen 6.0) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/4.0 Chrome/76.0.3809.146 TV Safari/537.36",
			}},
			{Name: "web-bypass", Args: []string{
				"--extractor-args", "youtube:player_client=web",
				"--user-agent", uaChromeDesktop,
				"--add-header", acceptLanguage,
			}},
		},
		VideoDelivery: DeliverPipe,
		AudioOption:   true,
	}
}

// Instagram prefers progressive mp4 renditions, which need no merge.
func Instagram() *Variant {
	return &Variant{
		Platform: domain.PlatformInstagram,
		Name:     "Instagram",
		Pattern:  instagramURL,
		BaseArgs: socialBaseArgs(),
		Strategies: []fallback.Strategy{
			{Name: "mobile-app", Args: []string{"--user-agent", "Instagram 219.0.0.12.117 Android"}},
			{Name: "mobile-web", Args: []string{"--user-agent", uaIPhoneSafari}},
			{Name: "desktop-bypass", Args: []string{"--user-agent", uaChromeDesktop, "--add-header", acceptLanguage}},
		},
		CookieUserAgent: uaIPhoneIOS17,
		VideoDelivery:   DeliverFile,
		selector:        instagramSelector,
	}
}

func TikTok() *Variant {
	return &Variant{
		Platform: domain.PlatformTikTok,
		Name:     "TikTok",
		Pattern:  tiktokURL,
		BaseArgs: socialBaseArgs(),
		Strategies: []fallback.Strategy{
			{Name: "mobile-app", Args: []string{"--user-agent", "TikTok 21.1.0 rv:211017 (iPhone; iOS 14.4.2; en_US) Cronet"}},
			{Name: "mobile-web", Args: []string{"--user-agent", uaIPhoneSafari}},
			{Name: "desktop-bypass", Args: []string{"--user-agent", uaChromeDesktop, "--add-header", acceptLanguage}},
		},
		CookieUserAgent: uaIPhoneIOS17,
		VideoDelivery:   DeliverFile,
	}
}

func socialBaseArgs() []string {
	return []string{"--geo-bypass", "--force-ipv4", "--socket-timeout", "30"}
}

func instagramSelector(height int) string {
	if height <= 0 {
		return "best[ext=mp4]/bestvideo+bestaudio/best"
	}
	h := strconv.Itoa(height)
	return "best[height<=" + h + "][ext=mp4]/bestvideo[height<=" + h + "]+bestaudio/best[height<=" + h + "]/best"
}
