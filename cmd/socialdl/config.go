package main

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"socialdownloader/internal/core/domain"
)

const envVarPrefix = "SOCIALDL"

// Config is read from, in increasing priority: built-in defaults, the
// YAML file named by SOCIALDL_CONFIG_FILE, then the environment. Every
// key may also be given with the SOCIALDL_ prefix.
type Config struct {
	Host             string        `envconfig:"HOST"              yaml:"host"`
	Port             int           `envconfig:"PORT"              yaml:"port"`
	FrontendURL      string        `envconfig:"FRONTEND_URL"      yaml:"frontendURL"`
	YtDlpPath        string        `envconfig:"YTDLP_PATH"        yaml:"ytdlpPath"`
	TempDir          string        `envconfig:"TEMP_DIR"          yaml:"tempDir"`
	YouTubeCookies   CookieBlob    `envconfig:"YOUTUBE_COOKIES"   yaml:"youtubeCookies"`
	InstagramCookies CookieBlob    `envconfig:"INSTAGRAM_COOKIES" yaml:"instagramCookies"`
	TikTokCookies    CookieBlob    `envconfig:"TIKTOK_COOKIES"    yaml:"tiktokCookies"`
	PlaylistLimit    int           `envconfig:"PLAYLIST_LIMIT"    yaml:"playlistLimit"`
	FallbackInterval time.Duration `envconfig:"FALLBACK_INTERVAL" yaml:"fallbackInterval"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT"  yaml:"shutdownTimeout"`
	LogLevel         string        `envconfig:"LOG_LEVEL"         yaml:"logLevel"`
}

func defaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            5000,
		PlaylistLimit:   50,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
	}
}

// LoadConfig loads .env, then the optional config file, then the
// environment.
func LoadConfig() (*Config, error) {
	// .env is optional; variables may already be set by the environment.
	_ = godotenv.Load()

	c := defaultConfig()
	if configFile := os.Getenv(envVarPrefix + "_CONFIG_FILE"); configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file: %w", err)
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if y, e := func() (string, string) {
		if c.Port <= 0 || c.Port > 65535 {
			return "port", "PORT"
		}
		if c.PlaylistLimit <= 0 {
			return "playlistLimit", "PLAYLIST_LIMIT"
		}
		if c.FallbackInterval < 0 {
			return "fallbackInterval", "FALLBACK_INTERVAL"
		}
		if c.ShutdownTimeout <= 0 {
			return "shutdownTimeout", "SHUTDOWN_TIMEOUT"
		}
		if _, err := c.Level(); err != nil {
			return "logLevel", "LOG_LEVEL"
		}
		return "", ""
	}(); y != "" {
		return fmt.Errorf("invalid configuration: %s / %s", y, e)
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Level parses LogLevel as a slog level name.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("unmarshaling log level `%s`: %w", c.LogLevel, err)
	}
	return level, nil
}

// Origins returns the configured frontend, if any.
func (c *Config) Origins() []string {
	if u := strings.TrimRight(strings.TrimSpace(c.FrontendURL), "/"); u != "" {
		return []string{u}
	}
	return nil
}

// CookieJars returns the decoded jars by platform. Facebook takes none.
func (c *Config) CookieJars() map[domain.Platform][]byte {
	return map[domain.Platform][]byte{
		domain.PlatformYouTube:   c.YouTubeCookies,
		domain.PlatformInstagram: c.InstagramCookies,
		domain.PlatformTikTok:    c.TikTokCookies,
	}
}

// CookieBlob is a Netscape cookies.txt file supplied as base64.
type CookieBlob []byte

// Decode implements envconfig.Decoder.
func (b *CookieBlob) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		*b = nil
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return fmt.Errorf("decoding base64 cookies: %w", err)
	}
	*b = data
	return nil
}

func (b *CookieBlob) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("yaml-unmarshaling *CookieBlob: %w", err)
	}
	if err := b.Decode(s); err != nil {
		return fmt.Errorf("yaml-unmarshaling *CookieBlob: %w", err)
	}
	return nil
}
