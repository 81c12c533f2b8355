package tagcodec

import (
	"math"
	"testing"

	"github.com/lexian24/autolabel/pkg/types"
)

func TestParseSingleBox(t *testing.T) {
	records := Parse("There is <p>car</p>[0.1,0.2,0.4,0.6] in the image.")

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Label != "car" {
		t.Errorf("expected label 'car', got %q", records[0].Label)
	}
	if records[0].Geometry != types.GeometryBox {
		t.Errorf("expected rectangle geometry, got %s", records[0].Geometry)
	}
	want := []float64{0.1, 0.2, 0.4, 0.6}
	for i, c := range records[0].Coordinates {
		if math.Abs(c-want[i]) > 1e-9 {
			t.Errorf("coordinate %d: expected %f, got %f", i, want[i], c)
		}
	}
}

func TestParseGeometryKinds(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		kind   types.GeometryKind
		points int
	}{
		{"point", "<p>dot</p>[0.5,0.5]", types.GeometryPoint, 2},
		{"rectangle", "<p>box</p>[0.1,0.1,0.9,0.9]", types.GeometryBox, 4},
		{"polygon six", "<p>tri</p>[0.1,0.1,0.5,0.9,0.9,0.1]", types.GeometryPolygon, 6},
		{"polygon eight", "<p>quad</p>[0.1,0.1,0.9,0.1,0.9,0.9,0.1,0.9]", types.GeometryPolygon, 8},
		{"polygon ten", "<p>pent</p>[0.1,0.1,0.3,0.1,0.5,0.5,0.3,0.9,0.1,0.9]", types.GeometryPolygon, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := Parse(tt.text)
			if len(records) != 1 {
				t.Fatalf("expected 1 record, got %d", len(records))
			}
			if records[0].Geometry != tt.kind {
				t.Errorf("expected %s, got %s", tt.kind, records[0].Geometry)
			}
			if len(records[0].Coordinates) != tt.points {
				t.Errorf("expected %d coordinates, got %d", tt.points, len(records[0].Coordinates))
			}
		})
	}
}

func TestParseRejectsInvalidArity(t *testing.T) {
	for _, text := range []string{
		"<p>a</p>[0.5]",
		"<p>b</p>[0.1,0.2,0.3]",
		"<p>c</p>[0.1,0.2,0.3,0.4,0.5]",
		"<p>d</p>[0.1,0.2,0.3,0.4,0.5,0.6,0.7]",
	} {
		if records := Parse(text); len(records) != 0 {
			t.Errorf("expected %q to be rejected, got %d records", text, len(records))
		}
	}
}

func TestParseSkipsMalformedTagOnly(t *testing.T) {
	text := "There are <p>good</p>[0.1,0.2,0.3,0.4] and <p>bad</p>[0.1,oops,0.3,0.4] in the image."
	records := Parse(text)

	if len(records) != 1 {
		t.Fatalf("expected malformed tag to be skipped, got %d records", len(records))
	}
	if records[0].Label != "good" {
		t.Errorf("expected surviving record 'good', got %q", records[0].Label)
	}
}

func TestParseTrimsLabels(t *testing.T) {
	records := Parse("<p>  fire hydrant </p>[0.2,0.3]")
	if len(records) != 1 || records[0].Label != "fire hydrant" {
		t.Fatalf("expected trimmed label 'fire hydrant', got %+v", records)
	}
}

func TestParseNoTags(t *testing.T) {
	if records := Parse("The image shows a sunny beach."); len(records) != 0 {
		t.Errorf("expected no records for plain text, got %d", len(records))
	}
	if HasTags("The image shows a sunny beach.") {
		t.Error("HasTags should be false for plain text")
	}
}

func TestEncodeGrammar(t *testing.T) {
	one := []types.AnnotationRecord{
		{Label: "car", Coordinates: []float64{0.1, 0.2, 0.4, 0.6}, Geometry: types.GeometryBox},
	}
	two := append(one, types.AnnotationRecord{
		Label: "dog", Coordinates: []float64{0.5, 0.5}, Geometry: types.GeometryPoint,
	})
	three := append(two, types.AnnotationRecord{
		Label: "cat", Coordinates: []float64{0.7, 0.7}, Geometry: types.GeometryPoint,
	})

	tests := []struct {
		name    string
		records []types.AnnotationRecord
		want    string
	}{
		{"empty", nil, NothingDetected},
		{"one", one, "There is <p>car</p>[0.1,0.2,0.4,0.6] in the image."},
		{"two", two, "There are <p>car</p>[0.1,0.2,0.4,0.6] and <p>dog</p>[0.5,0.5] in the image."},
		{"three", three, "There are <p>car</p>[0.1,0.2,0.4,0.6], <p>dog</p>[0.5,0.5], and <p>cat</p>[0.7,0.7] in the image."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.records); got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeRoundsToThreeDecimals(t *testing.T) {
	records := []types.AnnotationRecord{
		{Label: "ship", Coordinates: []float64{0.38091, 0.1239, 0.4200001, 0.0404}, Geometry: types.GeometryBox},
	}
	want := "There is <p>ship</p>[0.381,0.124,0.42,0.04] in the image."
	if got := Encode(records); got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	original := []types.AnnotationRecord{
		{Label: "ship", Coordinates: []float64{0.38, 0.12, 0.42, 0.04}, Geometry: types.GeometryBox},
		{Label: "boat", Coordinates: []float64{0.1, 0.2, 0.15, 0.18}, Geometry: types.GeometryBox},
		{Label: "buoy", Coordinates: []float64{0.5, 0.55}, Geometry: types.GeometryPoint},
	}

	parsed := Parse(Encode(original))
	if len(parsed) != len(original) {
		t.Fatalf("round trip changed record count: %d -> %d", len(original), len(parsed))
	}
	for i, rec := range parsed {
		if rec.Label != original[i].Label {
			t.Errorf("record %d: label %q != %q", i, rec.Label, original[i].Label)
		}
		if rec.Geometry != original[i].Geometry {
			t.Errorf("record %d: geometry %s != %s", i, rec.Geometry, original[i].Geometry)
		}
		for j, c := range rec.Coordinates {
			if math.Abs(c-original[i].Coordinates[j]) > 0.001 {
				t.Errorf("record %d coordinate %d: %f != %f", i, j, c, original[i].Coordinates[j])
			}
		}
	}
}

func TestEndToEndScenario(t *testing.T) {
	text := "There is <p>ship</p>[0.38,0.12,0.42,0.04] and <p>boat</p>[0.1,0.2,0.15,0.18] in the image."

	records := Parse(text)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Label != "ship" || records[1].Label != "boat" {
		t.Errorf("unexpected labels: %q, %q", records[0].Label, records[1].Label)
	}
	for i, rec := range records {
		if rec.Geometry != types.GeometryBox {
			t.Errorf("record %d: expected rectangle, got %s", i, rec.Geometry)
		}
	}

	want := "There are <p>ship</p>[0.38,0.12,0.42,0.04] and <p>boat</p>[0.1,0.2,0.15,0.18] in the image."
	if got := Encode(records); got != want {
		t.Errorf("re-encode = %q, want %q", got, want)
	}
}

func TestKindFromCoordCount(t *testing.T) {
	valid := map[int]types.GeometryKind{
		2: types.GeometryPoint, 4: types.GeometryBox,
		6: types.GeometryPolygon, 8: types.GeometryPolygon, 10: types.GeometryPolygon,
	}
	for n, want := range valid {
		kind, ok := KindFromCoordCount(n)
		if !ok || kind != want {
			t.Errorf("KindFromCoordCount(%d) = %s,%v; want %s,true", n, kind, ok, want)
		}
	}
	for _, n := range []int{0, 1, 3, 5, 7} {
		if _, ok := KindFromCoordCount(n); ok {
			t.Errorf("KindFromCoordCount(%d) should be invalid", n)
		}
	}
}
