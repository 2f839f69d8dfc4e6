package ytdlp

import (
	"strings"

	"socialdownloader/internal/core/domain"
)

type rule struct {
	reason  error
	needles []string
}

// Order matters: a login wall often also mentions "unavailable".
var rules = []rule{
	{domain.ErrLoginRequired, []string{"private video", "login", "log in", "sign in", "members-only", "cookies"}},
	{domain.ErrRateLimited, []string{"429", "too many requests", "rate-limit", "rate limit"}},
	{domain.ErrRestricted, []string{"in your country", "geo restrict", "geo-restrict", "403", "forbidden", "age-restricted"}},
	{domain.ErrUnavailable, []string{"video unavailable", "not available", "removed", "404", "does not exist", "deleted"}},
}

// Classify maps yt-dlp stderr text to a reason sentinel, or nil when the
// failure is not recognised.
func Classify(stderr string) error {
	s := strings.ToLower(stderr)
	for _, r := range rules {
		for _, n := range r.needles {
			if strings.Contains(s, n) {
				return r.reason
			}
		}
	}
	return nil
}
