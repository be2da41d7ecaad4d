package normalize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmptyNumber is returned by ParseNumber for blank input.
	ErrEmptyNumber = errors.New("empty number")
	// ErrBadDate is returned by NormalizeDate when no known layout matches.
	ErrBadDate = errors.New("unrecognized date")
)

var buildingSynonyms = map[string]string{
	"bldg":     "tower",
	"building": "tower",
	"blk":      "tower",
	"block":    "tower",
}

var romanNumerals = map[string]string{
	"i": "1", "ii": "2", "iii": "3", "iv": "4", "v": "5",
	"vi": "6", "vii": "7", "viii": "8", "ix": "9", "x": "10",
}

var (
	digitRun = regexp.MustCompile(`\d+`)
	// unit marker followed by its number, e.g. "unit 1204", "apt #12", "flat no. 7".
	embeddedUnit = regexp.MustCompile(`\b(?:unit|apt|apartment|flat|office|shop|villa)\s*(?:no\.?|#)?\s*(\d+[a-z]?)\b`)
)

// FallbackUnitPrefix marks a transaction unit taken from its txn_id.
// Matchers never treat such a unit as equal to an owner's.
const FallbackUnitPrefix = "txn:"

var dateLayouts = []string{
	"02-01-2006",
	"2006-01-02",
	"1/2/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
}

// Text applies Unicode NFKC, lower-cases, trims and collapses whitespace.
func Text(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// stripPunct replaces every rune that is not a letter, digit or space with a space.
func stripPunct(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)
}

// Project returns the blocking key form of a project name.
func Project(s string) string {
	return strings.Join(strings.Fields(stripPunct(Text(s))), " ")
}

// Building canonicalizes a building name: synonyms become "tower" and roman
// numerals i..x become digits.
func Building(s string) string {
	tokens := strings.Fields(stripPunct(Text(s)))
	for i, tok := range tokens {
		if syn, ok := buildingSynonyms[tok]; ok {
			tokens[i] = syn
			continue
		}
		if d, ok := romanNumerals[tok]; ok {
			tokens[i] = d
		}
	}
	return strings.Join(tokens, " ")
}

// Unit normalizes a unit number: the first digit run zero-padded to four
// digits, or the cleaned text when it has no digits.
func Unit(s string) string {
	s = Text(s)
	if s == "" {
		return ""
	}
	if d := digitRun.FindString(s); d != "" {
		if len(d) < 4 {
			d = strings.Repeat("0", 4-len(d)) + d
		}
		return d
	}
	return s
}

// SplitBuildingUnit pulls an embedded unit number out of building text.
// "Tower A Unit 1204" returns ("tower a", "1204", true).
func SplitBuildingUnit(building string) (string, string, bool) {
	lowered := Text(building)
	loc := embeddedUnit.FindStringSubmatchIndex(lowered)
	if loc == nil {
		return building, "", false
	}
	unit := Unit(lowered[loc[2]:loc[3]])
	rest := strings.TrimSpace(lowered[:loc[0]] + " " + lowered[loc[1]:])
	return rest, unit, true
}

// ParseNumber parses a numeric field, tolerating thousands separators.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(norm.NFKC.String(s))
	if s == "" {
		return 0, ErrEmptyNumber
	}
	s = strings.NewReplacer(",", "", " ", "", "_", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}

// Date normalizes a date to YYYY-MM-DD. Blank input yields "".
func Date(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrBadDate, s)
}
