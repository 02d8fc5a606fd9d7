package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ParseDuration understands the command shorthand: "1d", "12h", "30m" and
// combinations like "1d12h". time.ParseDuration has no day unit, and the
// natural-language parsers in the ecosystem are built for phrases like
// "in five minutes", which the slash command never produces.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	var total time.Duration
	num := strings.Builder{}
	for _, r := range s {
		if unicode.IsDigit(r) {
			num.WriteRune(r)
			continue
		}
		if num.Len() == 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		n, err := strconv.Atoi(num.String())
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		num.Reset()
		switch r {
		case 'd':
			total += time.Duration(n) * 24 * time.Hour
		case 'h':
			total += time.Duration(n) * time.Hour
		case 'm':
			total += time.Duration(n) * time.Minute
		case 's':
			total += time.Duration(n) * time.Second
		default:
			return 0, fmt.Errorf("unknown duration unit %q", string(r))
		}
	}
	if num.Len() != 0 {
		return 0, fmt.Errorf("duration %q is missing a unit (d, h, m, s)", s)
	}
	if total <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return total, nil
}

// FormatDuration renders a duration the way the commands accept it.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	var b strings.Builder
	if days := int(d.Hours()) / 24; days > 0 {
		fmt.Fprintf(&b, "%dd", days)
		d -= time.Duration(days) * 24 * time.Hour
	}
	if h := int(d.Hours()); h > 0 {
		fmt.Fprintf(&b, "%dh", h)
		d -= time.Duration(h) * time.Hour
	}
	if m := int(d.Minutes()); m > 0 {
		fmt.Fprintf(&b, "%dm", m)
	}
	if b.Len() == 0 {
		return "under 1m"
	}
	return b.String()
}
