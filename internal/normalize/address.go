// Package normalize canonicalizes street addresses and provides optional
// external geocoding with a rule-based local fallback.
package normalize

import (
	"regexp"
	"strings"
)

// Token substitutions applied in order. Deterministic, so the output is
// usable as a last-resort match key.
var tokenSubs = map[string]string{
	"STREET":    "ST",
	"AVENUE":    "AVE",
	"BOULEVARD": "BLVD",
	"PLACE":     "PL",
	"ROAD":      "RD",
	"DRIVE":     "DR",
	"LANE":      "LN",
	"COURT":     "CT",
	"TERRACE":   "TER",
	"PARKWAY":   "PKWY",
	"SQUARE":    "SQ",
	"EAST":      "E",
	"WEST":      "W",
	"NORTH":     "N",
	"SOUTH":     "S",
	"FIRST":     "1",
	"SECOND":    "2",
	"THIRD":     "3",
	"FOURTH":    "4",
	"FIFTH":     "5",
	"SIXTH":     "6",
	"SEVENTH":   "7",
	"EIGHTH":    "8",
	"NINTH":     "9",
	"TENTH":     "10",
}

var (
	unitPattern       = regexp.MustCompile(`(?i)\s+(APT|APARTMENT|UNIT|SUITE|STE|FL|FLOOR|#)\.?\s*[A-Z0-9-]*$`)
	ordinalPattern    = regexp.MustCompile(`(\d+)(ST|ND|RD|TH)\b`)
	punctPattern      = regexp.MustCompile(`[.,;']`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes a free-text street address: uppercase, unit
// suffixes stripped, street-type and directional tokens abbreviated,
// ordinal suffixes dropped. Always succeeds; confidence is implicitly
// "exact string", used only as the lowest resolution tier.
func Normalize(address string) string {
	s := strings.ToUpper(strings.TrimSpace(address))
	if s == "" {
		return ""
	}

	s = punctPattern.ReplaceAllString(s, "")
	s = unitPattern.ReplaceAllString(s, "")
	s = ordinalPattern.ReplaceAllString(s, "$1")

	tokens := strings.Fields(s)
	for i, tok := range tokens {
		if sub, ok := tokenSubs[tok]; ok {
			tokens[i] = sub
		}
	}

	return whitespacePattern.ReplaceAllString(strings.Join(tokens, " "), " ")
}

// AddressKey builds the composite "normalized address|zip" fallback key.
// Empty when either part is missing, so partial keys never collide.
func AddressKey(address, zipCode string) string {
	norm := Normalize(address)
	zip := strings.TrimSpace(zipCode)
	if norm == "" || zip == "" {
		return ""
	}
	return norm + "|" + zip
}
