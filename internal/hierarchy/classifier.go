package hierarchy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// RowRole is the hierarchy role of a spreadsheet row, recovered from its label.
type RowRole int

const (
	RoleIgnorable RowRole = iota
	RoleRegion
	RoleDistrict
	RoleTherapeuticClass
	RoleProduct
)

func (r RowRole) String() string {
	switch r {
	case RoleRegion:
		return "Region"
	case RoleDistrict:
		return "District"
	case RoleTherapeuticClass:
		return "TherapeuticClass"
	case RoleProduct:
		return "Product"
	default:
		return "Ignorable"
	}
}

// IsData reports whether rows of this role carry measures.
func (r RowRole) IsData() bool {
	return r == RoleProduct || r == RoleTherapeuticClass
}

// RegionPrefix marks region header rows.
const RegionPrefix = "Region "

var (
	districtPattern = regexp.MustCompile(`^\([A-Z]{2}\)\s+\S`)

	reservedMarkers = map[string]bool{
		"GRAND TOTAL": true,
		"Grand Total": true,
		"Grand total": true,
		"TOTAL":       true,
		"Total":       true,
	}
)

// Predicate tests a normalized label.
type Predicate func(label string) bool

// Rule binds a predicate to the role it assigns.
type Rule struct {
	Name  string
	Role  RowRole
	Match Predicate
}

// Classification is the result of classifying one label.
type Classification struct {
	Role RowRole
	// Rule names the predicate that decided the role. It is "ambiguous" when the
	// label had no recognisable content and "fallback" when no rule matched.
	Rule string
}

// Ambiguous reports whether the label was discarded because nothing in it
// could be interpreted.
func (c Classification) Ambiguous() bool {
	return c.Rule == "ambiguous"
}

// Classifier assigns a RowRole to labels by evaluating rules in order; the first
// matching rule wins. Labels that match no rule are products.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier from rules. With no rules the default
// rule set is used.
func NewClassifier(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// DefaultRules returns the rule set for the pharma brick exports.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "empty", Role: RoleIgnorable, Match: IsEmptyLabel},
		{Name: "aggregate_marker", Role: RoleIgnorable, Match: IsAggregateMarker},
		{Name: "region_prefix", Role: RoleRegion, Match: IsRegionLabel},
		{Name: "district_code", Role: RoleDistrict, Match: IsDistrictLabel},
		{Name: "atc_class", Role: RoleTherapeuticClass, Match: IsTherapeuticClassLabel},
	}
}

// WithRule returns a copy of the classifier with rule evaluated before the
// existing rules.
func (c *Classifier) WithRule(rule Rule) *Classifier {
	rules := make([]Rule, 0, len(c.rules)+1)
	rules = append(rules, rule)
	rules = append(rules, c.rules...)
	return &Classifier{rules: rules}
}

// Classify returns the role of label.
func (c *Classifier) Classify(label string) RowRole {
	return c.Explain(label).Role
}

// Explain classifies label and reports the deciding rule.
func (c *Classifier) Explain(label string) Classification {
	label = NormalizeLabel(label)
	for _, rule := range c.rules {
		if rule.Match(label) {
			return Classification{Role: rule.Role, Rule: rule.Name}
		}
	}
	if !hasLetter(label) {
		return Classification{Role: RoleIgnorable, Rule: "ambiguous"}
	}
	return Classification{Role: RoleProduct, Rule: "fallback"}
}

var defaultClassifier = NewClassifier()

// Classify classifies label with the default rules.
func Classify(label string) RowRole {
	return defaultClassifier.Classify(label)
}

// NormalizeLabel applies NFKC normalization, which folds the non-breaking
// spaces common in exported sheets, then trims and collapses whitespace.
func NormalizeLabel(label string) string {
	label = norm.NFKC.String(label)
	return strings.Join(strings.Fields(label), " ")
}

func IsEmptyLabel(label string) bool {
	return strings.TrimSpace(label) == "" || strings.EqualFold(label, "nan")
}

// IsAggregateMarker matches grand-total rows and "Total ..." layout banners.
func IsAggregateMarker(label string) bool {
	if reservedMarkers[label] {
		return true
	}
	return strings.HasPrefix(label, "Total ") || strings.HasPrefix(strings.ToUpper(label), "GRAND TOTAL")
}

func IsRegionLabel(label string) bool {
	return strings.HasPrefix(label, RegionPrefix) && len(strings.TrimSpace(label)) > len(RegionPrefix)
}

// IsDistrictLabel matches brick rows such as "(SF) SOFIA CENTER".
func IsDistrictLabel(label string) bool {
	return districtPattern.MatchString(label)
}

// IsTherapeuticClassLabel matches ATC class rows such as "R06A0 ANTIHISTAMINES":
// a 4 to 7 character upper-case first token that starts with a letter and
// contains a digit, followed by at least one more token.
func IsTherapeuticClassLabel(label string) bool {
	if reservedMarkers[label] || strings.HasPrefix(label, "Region") {
		return false
	}
	tokens := strings.Fields(label)
	if len(tokens) < 2 {
		return false
	}
	first := tokens[0]
	n := len([]rune(first))
	if n < 4 || n > 7 {
		return false
	}
	runes := []rune(first)
	if !unicode.IsLetter(runes[0]) {
		return false
	}
	if first != strings.ToUpper(first) {
		return false
	}
	return strings.IndexFunc(first, unicode.IsDigit) >= 0
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}
