package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a Go-duration config string such as
// "30s" or "1h30m". The empty string means "unset" and yields zero;
// negative durations are rejected. path names the config field for
// error messages, e.g. "auth.cache_ttl".
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with a fallback: an
// unset (or zero) field yields def instead of zero. Callers use it
// for knobs like poll timeouts that always need a working value.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
