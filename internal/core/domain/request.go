package domain

import "regexp"

// Facebook download heights must fall inside this range.
const (
	MinHeight = 144
	MaxHeight = 4320
)

// Validate checks the request against the platform's URL pattern before any
// subprocess is spawned.
func (r MediaRequest) Validate(pattern *regexp.Regexp, platformName string) error {
	if r.URL == "" {
		return Invalid("url", "URL is required")
	}
	if pattern != nil && !pattern.MatchString(r.URL) {
		return Invalid("url", "Invalid "+platformName+" URL")
	}
	if r.Height < 0 {
		return Invalid("height", "Invalid quality height")
	}
	return nil
}

// HeightInRange reports whether h is an accepted explicit quality.
func HeightInRange(h int) bool {
	return h >= MinHeight && h <= MaxHeight
}
