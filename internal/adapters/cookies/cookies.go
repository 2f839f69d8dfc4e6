// Package cookies materializes per-platform cookie jars supplied through
// configuration into files yt-dlp can read with --cookies.
package cookies

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"socialdownloader/internal/core/domain"
)

// Dir is the subdirectory of the temp store holding cookie jars.
const Dir = "socialdownloader"

// FileSaver is the part of the local store used to write jars.
type FileSaver interface {
	SaveFile(dir, name string, data []byte) (string, error)
}

// Provision writes each non-empty jar to <dir>/<platform>_cookies.txt and
// returns the resulting paths. Jars that hold no Netscape cookie lines are
// still written but logged, since yt-dlp will silently ignore them.
func Provision(store FileSaver, jars map[domain.Platform][]byte, logger *slog.Logger) (map[domain.Platform]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	platforms := make([]string, 0, len(jars))
	for p := range jars {
		platforms = append(platforms, string(p))
	}
	sort.Strings(platforms)

	paths := make(map[domain.Platform]string, len(jars))
	for _, name := range platforms {
		p := domain.Platform(name)
		data := jars[p]
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		path, err := store.SaveFile(Dir, name+"_cookies.txt", data)
		if err != nil {
			return nil, fmt.Errorf("provisioning %s cookies: %w", name, err)
		}
		n := Count(data)
		if n == 0 {
			logger.Warn("cookie jar has no netscape entries", "platform", name, "path", path)
		} else {
			logger.Info("cookies provisioned", "platform", name, "path", path, "cookies", n)
		}
		paths[p] = path
	}
	return paths, nil
}

// Count returns the number of well-formed Netscape cookies.txt entries.
func Count(data []byte) int {
	n := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// #HttpOnly_ prefixed lines are real cookies.
		line = strings.TrimPrefix(line, "#HttpOnly_")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if len(strings.Split(line, "\t")) >= 7 {
			n++
		}
	}
	return n
}
