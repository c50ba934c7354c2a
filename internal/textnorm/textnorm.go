// Package textnorm provides the canonical comparison form for the free-text
// geographic and categorical fields of the registry.
//
// Source spreadsheets are typed by hand: the same vereda shows up as
// "Veredas de La Esperanza", "80 - LA ESPERANZA" or "la  esperanza".
// Filters and sort keys must treat all of those as the same bucket, so both
// the query layer and the staging pipeline reduce values to one canonical
// form before comparing. The stored text is never rewritten; normalization
// is computed where it is needed.
//
// All functions are total (nil-safe, empty in -> empty out) and idempotent.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// unaccent decomposes to NFD and drops the combining marks, so that
// "Paraíso" and "Paraiso" compare equal.
var unaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var (
	enumPrefix    = regexp.MustCompile(`^\s*\d+\s*-\s*`)
	spaceRuns     = regexp.MustCompile(`\s+`)
	corregPrefix  = regexp.MustCompile(`^\s*corregimiento(\s+de)?\s+`)
	veredaPrefix  = regexp.MustCompile(`^\s*veredas?(\s+de)?\s+`)
	expansionArea = regexp.MustCompile(`^\s*area\s+de\s+expansion\s+`)
	sectorPrefix  = regexp.MustCompile(`^\s*sector(es)?\s+`)
	zonaPrefix    = regexp.MustCompile(`^\s*zona(s)?\s+`)
)

// base applies the rules shared by every field kind: strip accents,
// lowercase, trim, drop a leading "<digits> - " enumeration prefix and
// collapse whitespace runs.
func base(raw string) string {
	s, _, err := transform.String(unaccent, raw)
	if err != nil {
		// Remove never fails on valid UTF-8; fall back to the input
		// rather than dropping the value.
		s = raw
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = enumPrefix.ReplaceAllString(s, "")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Label normalizes a categorical value (sexo, escolaridad, linea_productiva).
func Label(raw string) string {
	return base(raw)
}

// Corregimiento normalizes a district name, stripping the boilerplate
// "corregimiento de" prefix the source sheets carry.
//
//	Corregimiento("12 - Corregimiento de El Paraíso") == "el paraiso"
func Corregimiento(raw string) string {
	s := base(raw)
	s = corregPrefix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Vereda normalizes a village name. The bases prefix villages with
// "vereda(s) de", "area de expansion" and occasionally "sector(es)" or
// "zona(s)"; all are dropped.
//
//	Vereda("Veredas de La Esperanza") == "la esperanza"
func Vereda(raw string) string {
	s := base(raw)
	s = veredaPrefix.ReplaceAllString(s, "")
	s = expansionArea.ReplaceAllString(s, "")
	s = sectorPrefix.ReplaceAllString(s, "")
	s = zonaPrefix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Geo dispatches on the field kind. Unknown kinds get Label treatment.
func Geo(kind, raw string) string {
	switch kind {
	case "corregimiento":
		return Corregimiento(raw)
	case "vereda":
		return Vereda(raw)
	default:
		return Label(raw)
	}
}
