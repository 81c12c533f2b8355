// Package tagcodec parses and renders the embedded annotation mini-language
// used inside conversation turns: <p>label</p>[c1,c2,...].
//
// The grammar has no escaping; parsing is a single non-backtracking pattern
// scan with per-match validation. A malformed match is skipped with a warning
// and never aborts the whole scan.
package tagcodec

import (
	"fmt"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/lexian24/autolabel/pkg/types"
)

var tagPattern = regexp.MustCompile(`<p>([^<]+)</p>\[([^\]]+)\]`)

// NothingDetected is the fixed response rendered for an empty record list.
const NothingDetected = "I don't see any specific objects to detect in this image."

// KindFromCoordCount maps a coordinate count to a geometry kind:
// 2 -> point, 4 -> rectangle, even counts >= 6 -> polygon. Any other count
// is invalid and returns false.
func KindFromCoordCount(n int) (types.GeometryKind, bool) {
	switch {
	case n == 2:
		return types.GeometryPoint, true
	case n == 4:
		return types.GeometryBox, true
	case n >= 6 && n%2 == 0:
		return types.GeometryPolygon, true
	default:
		return "", false
	}
}

// Parse scans text for embedded annotation tags and returns one record per
// valid occurrence. Occurrences with unparsable numbers or an invalid
// coordinate count are dropped with a warning.
func Parse(text string) []types.AnnotationRecord {
	var records []types.AnnotationRecord

	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		label, coordStr := m[1], m[2]

		coords, err := parseCoords(coordStr)
		if err != nil {
			log.Printf("tagcodec: skipping annotation %q: %v", coordStr, err)
			continue
		}

		kind, ok := KindFromCoordCount(len(coords))
		if !ok {
			log.Printf("tagcodec: skipping annotation with %d coordinates: %v", len(coords), coords)
			continue
		}

		records = append(records, types.AnnotationRecord{
			Label:       strings.TrimSpace(label),
			Coordinates: coords,
			Geometry:    kind,
		})
	}

	return records
}

// HasTags reports whether text contains at least one embedded annotation tag.
func HasTags(text string) bool {
	return tagPattern.MatchString(text)
}

// Encode renders records as a grammatically correct enumeration:
//
//	0 records: fixed "nothing detected" sentence
//	1 record:  "There is {r} in the image."
//	2 records: "There are {r0} and {r1} in the image."
//	3+:        "There are {r0}, ..., and {rN} in the image."
func Encode(records []types.AnnotationRecord) string {
	if len(records) == 0 {
		return NothingDetected
	}

	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = FormatTag(r.Label, r.Coordinates)
	}

	switch len(parts) {
	case 1:
		return fmt.Sprintf("There is %s in the image.", parts[0])
	case 2:
		return fmt.Sprintf("There are %s and %s in the image.", parts[0], parts[1])
	default:
		head := strings.Join(parts[:len(parts)-1], ", ")
		return fmt.Sprintf("There are %s, and %s in the image.", head, parts[len(parts)-1])
	}
}

// FormatTag renders a single <p>label</p>[...] tag with coordinates rounded
// to 3 decimal places.
func FormatTag(label string, coords []float64) string {
	strs := make([]string, len(coords))
	for i, c := range coords {
		strs[i] = FormatCoord(c)
	}
	return fmt.Sprintf("<p>%s</p>[%s]", label, strings.Join(strs, ","))
}

// FormatCoord rounds to 3 decimals and renders without trailing zeros.
func FormatCoord(v float64) string {
	return strconv.FormatFloat(Round3(v), 'f', -1, 64)
}

// Round3 rounds to 3 decimal places, half away from zero.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func parseCoords(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	coords := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("bad coordinate %q: %w", f, err)
		}
		coords = append(coords, v)
	}
	return coords, nil
}
