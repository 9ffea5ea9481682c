package room

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	colorPattern = regexp.MustCompile(`^#?([0-9a-fA-F]{6})$`)
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
)

func clampDurationSec(sec int64) int64 {
	if sec < MinDurationSec {
		return MinDurationSec
	}
	if sec > MaxDurationSec {
		return MaxDurationSec
	}
	return sec
}

func clampDurationMin(m int64) int64 {
	if m < MinDurationMin {
		return MinDurationMin
	}
	if m > MaxDurationMin {
		return MaxDurationMin
	}
	return m
}

// DurationMinutes is the duration rounded up to whole minutes; the ceiling
// for both warning thresholds.
func (r Room) DurationMinutes() int64 {
	return (r.DurationSec + 59) / 60
}

func clampWarn(w, ceiling int64) int64 {
	if w < 0 {
		return 0
	}
	if w > ceiling {
		return ceiling
	}
	return w
}

func (r *Room) clampWarnings() {
	ceiling := r.DurationMinutes()
	r.Warn1Min = clampWarn(r.Warn1Min, ceiling)
	r.Warn2Min = clampWarn(r.Warn2Min, ceiling)
}

// NormalizeColor accepts six hex digits with or without a leading '#'
// and returns the lower-cased "#rrggbb" form.
func NormalizeColor(s string) (string, bool) {
	m := colorPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	return "#" + strings.ToLower(m[1]), true
}

// ParseLang maps a language hint onto one of the two supported values.
func ParseLang(s string) (Lang, bool) {
	switch Lang(strings.ToLower(strings.TrimSpace(s))) {
	case LangPrimary:
		return LangPrimary, true
	case LangSecondary:
		return LangSecondary, true
	}
	return "", false
}

// SanitizeMessage drops control characters (tab, LF and CR survive), repairs
// invalid UTF-8 and caps the text at MaxMessageRunes code points.
func SanitizeMessage(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = controlChars.ReplaceAllString(s, "")
	if utf8.RuneCountInString(s) <= MaxMessageRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxMessageRunes])
}

// ParseBool reads the loose boolean spellings browsers and forms send.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
