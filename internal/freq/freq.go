// Package freq parses the frequency and optional anchor-time-of-day fields of a
// job configuration line, per spec §4.1.
package freq

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/crontabber/crontabber/internal/runnererr"
)

// Anchor is a wall-clock time of day (24-hour) a daily-or-slower job is pinned to.
type Anchor struct {
	Hour   int
	Minute int
}

func (a Anchor) String() string {
	return fmt.Sprintf("%02d:%02d", a.Hour, a.Minute)
}

// Frequency is a parsed period plus optional anchor.
type Frequency struct {
	Period time.Duration
	Anchor *Anchor
}

// Parse parses a magnitude+unit string (e.g. "5m", "2d", "1h") and an optional
// "HH:MM" anchor string (pass "" when absent).
//
// Units: m = minutes, h = hours, d = days. Magnitude must be a positive integer.
// An anchor is only legal when the resulting period is a whole number of days.
func Parse(frequency, anchor string) (Frequency, error) {
	period, err := parseMagnitude(frequency)
	if err != nil {
		return Frequency{}, err
	}

	if anchor == "" {
		return Frequency{Period: period}, nil
	}

	if period < 24*time.Hour || period%(24*time.Hour) != 0 {
		return Frequency{}, runnererr.Newf(runnererr.KindConfigError, runnererr.LabelTimeOnSubdailyFrequency,
			"anchor %q given for sub-daily frequency %q", anchor, frequency)
	}

	a, err := parseAnchor(anchor)
	if err != nil {
		return Frequency{}, err
	}
	return Frequency{Period: period, Anchor: &a}, nil
}

func parseMagnitude(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, runnererr.Newf(runnererr.KindConfigError, runnererr.LabelBadFrequency, "malformed frequency %q", s)
	}
	unit := s[len(s)-1]
	numPart := s[:len(s)-1]

	n, err := strconv.Atoi(numPart)
	if err != nil {
		return 0, runnererr.Newf(runnererr.KindConfigError, runnererr.LabelBadFrequency, "non-integer magnitude in frequency %q", s)
	}
	if n <= 0 {
		return 0, runnererr.Newf(runnererr.KindConfigError, runnererr.LabelBadFrequency, "non-positive magnitude in frequency %q", s)
	}

	var unitDur time.Duration
	switch unit {
	case 'm':
		unitDur = time.Minute
	case 'h':
		unitDur = time.Hour
	case 'd':
		unitDur = 24 * time.Hour
	default:
		return 0, runnererr.Newf(runnererr.KindConfigError, runnererr.LabelBadFrequency, "unknown unit %q in frequency %q", string(unit), s)
	}

	return time.Duration(n) * unitDur, nil
}

func parseAnchor(s string) (Anchor, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Anchor{}, runnererr.Newf(runnererr.KindConfigError, runnererr.LabelBadFrequency, "malformed anchor %q, want HH:MM", s)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return Anchor{}, runnererr.Newf(runnererr.KindConfigError, runnererr.LabelBadFrequency, "malformed anchor %q, want HH:MM", s)
	}
	return Anchor{Hour: h, Minute: m}, nil
}
