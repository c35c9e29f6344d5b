package periods

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Granularity is the kind of sub-period a token names.
type Granularity int

const (
	Unknown Granularity = iota
	Quarter
	Month
)

func (g Granularity) String() string {
	switch g {
	case Quarter:
		return "quarter"
	case Month:
		return "month"
	default:
		return "unknown"
	}
}

var (
	quarterPattern = regexp.MustCompile(`(?i)\bQ([1-4])\b`)
	yearPattern    = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	unitsSuffix    = regexp.MustCompile(`(?i)\s+units$`)

	monthIndex = map[string]int{
		"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
		"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
	}
	monthNames = []string{"", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
)

// Key is the chronological sort key of a period. Unrecognized tokens have the
// zero key and therefore sort before every recognized period.
type Key struct {
	Year int
	Sub  int
}

// Less orders keys chronologically.
func (k Key) Less(o Key) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Sub < o.Sub
}

// Period is a parsed period token.
type Period struct {
	Label       string
	Granularity Granularity
	Key         Key
}

// Known reports whether the token matched the quarter or month vocabulary.
func (p Period) Known() bool {
	return p.Granularity != Unknown
}

// CleanLabel strips trailing decorations such as " Units" from a column
// header and normalizes whitespace.
func CleanLabel(header string) string {
	label := strings.Join(strings.Fields(header), " ")
	return unitsSuffix.ReplaceAllString(label, "")
}

// Parse interprets a period label.
func Parse(label string) Period {
	label = CleanLabel(label)
	p := Period{Label: label}

	ym := yearPattern.FindStringSubmatch(label)
	if ym == nil {
		return p
	}
	year, _ := strconv.Atoi(ym[1])

	if qm := quarterPattern.FindStringSubmatch(label); qm != nil {
		q, _ := strconv.Atoi(qm[1])
		p.Granularity = Quarter
		p.Key = Key{Year: year, Sub: q}
		return p
	}
	if m := monthOf(label); m > 0 {
		p.Granularity = Month
		p.Key = Key{Year: year, Sub: m}
	}
	return p
}

// SortKey returns the chronological key of label.
func SortKey(label string) Key {
	return Parse(label).Key
}

// monthOf returns the month number named by any token in label, or 0.
func monthOf(label string) int {
	for _, tok := range strings.FieldsFunc(label, func(r rune) bool {
		return r == ' ' || r == '-' || r == '/' || r == '_' || r == '.'
	}) {
		if len(tok) < 3 {
			continue
		}
		if m, ok := monthIndex[strings.ToLower(tok[:3])]; ok {
			if len(tok) == 3 || strings.HasPrefix(strings.ToLower(fullMonth(m)), strings.ToLower(tok)) {
				return m
			}
		}
	}
	return 0
}

func fullMonth(m int) string {
	return [...]string{"", "January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"}[m]
}

// Sort orders labels chronologically in place. Ties keep their input order.
// Unrecognized labels sort first; they are logged at warn level so that a
// mis-ordered axis is visible in the logs.
func Sort(labels []string, logger *slog.Logger) {
	keys := make(map[string]Key, len(labels))
	var unknown []string
	for _, l := range labels {
		p := Parse(l)
		keys[l] = p.Key
		if !p.Known() {
			unknown = append(unknown, l)
		}
	}
	sort.SliceStable(labels, func(i, j int) bool {
		return keys[labels[i]].Less(keys[labels[j]])
	})
	if len(unknown) > 0 && logger != nil {
		logger.Warn("unrecognized period labels sorted first",
			slog.Any("labels", unknown))
	}
}

// Sorted returns the distinct labels in chronological order.
func Sorted(labels []string, logger *slog.Logger) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	Sort(out, logger)
	return out
}

// PreviousYear returns the same quarter or month one year earlier, formatted
// the way the export labels periods ("Q2 2024", "Mar 2024").
func PreviousYear(label string) (string, error) {
	p := Parse(label)
	switch p.Granularity {
	case Quarter:
		return fmt.Sprintf("Q%d %d", p.Key.Sub, p.Key.Year-1), nil
	case Month:
		return fmt.Sprintf("%s %d", monthNames[p.Key.Sub], p.Key.Year-1), nil
	default:
		return "", fmt.Errorf("period %q is not a quarter or month", label)
	}
}

// Previous returns the label immediately before label in the chronological
// ordering of available. The second result is false when label is the
// earliest or is not present.
func Previous(label string, available []string) (string, bool) {
	sorted := Sorted(available, nil)
	for i, l := range sorted {
		if l == label {
			if i == 0 {
				return "", false
			}
			return sorted[i-1], true
		}
	}
	return "", false
}

// Latest returns the two most recent labels (reference, base).
func Latest(available []string) (ref, base string, ok bool) {
	sorted := Sorted(available, nil)
	if len(sorted) < 2 {
		return "", "", false
	}
	return sorted[len(sorted)-1], sorted[len(sorted)-2], true
}
