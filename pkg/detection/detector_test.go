package detection

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/lexian24/autolabel/pkg/types"
)

type fakeClient struct {
	response string
	err      error
	prompt   string
}

func (f *fakeClient) Query(ctx context.Context, model, prompt, imageB64 string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func TestDetectEmbeddedTagResponse(t *testing.T) {
	client := &fakeClient{
		response: "There is <p>ship</p>[0.1,0.2,0.5,0.6] in the image.",
	}
	detector := NewDetector(client)

	shapes, desc, err := detector.Detect(context.Background(), "qwen2.5vl", "img", "ship", Options{
		ImageWidth:  1000,
		ImageHeight: 500,
	})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(shapes) != 1 {
		t.Fatalf("expected 1 shape, got %d", len(shapes))
	}
	s := shapes[0]
	if s.Label != "ship" || s.Type != types.GeometryBox {
		t.Errorf("unexpected shape %+v", s)
	}
	if math.Abs(s.Points[0].X-100) > 1e-9 || math.Abs(s.Points[0].Y-100) > 1e-9 {
		t.Errorf("first point = %+v, want (100,100)", s.Points[0])
	}
	if math.Abs(s.Points[1].X-500) > 1e-9 || math.Abs(s.Points[1].Y-300) > 1e-9 {
		t.Errorf("second point = %+v, want (500,300)", s.Points[1])
	}
	if desc != client.response {
		t.Errorf("description should carry the raw response")
	}
	if !strings.Contains(client.prompt, "Find and locate ship") {
		t.Errorf("unexpected prompt %q", client.prompt)
	}
}

func TestDetectJSONResponseScalesFromModelSpace(t *testing.T) {
	client := &fakeClient{
		response: `[{"bbox_2d": [100, 50, 300, 150], "label": "car"}]`,
	}
	detector := NewDetector(client)

	shapes, _, err := detector.Detect(context.Background(), "m", "img", "car", Options{
		ImageWidth:       1280,
		ImageHeight:      960,
		ModelInputWidth:  640,
		ModelInputHeight: 480,
	})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(shapes) != 1 {
		t.Fatalf("expected 1 shape, got %d", len(shapes))
	}
	s := shapes[0]
	if s.Points[0].X != 200 || s.Points[0].Y != 100 || s.Points[1].X != 600 || s.Points[1].Y != 300 {
		t.Errorf("unexpected scaled points %+v", s.Points)
	}
}

func TestDetectJSONResponseIdentityWithoutModelDims(t *testing.T) {
	client := &fakeClient{
		response: `[{"bbox": [10, 20, 30, 40], "label": "dog"}]`,
	}
	detector := NewDetector(client)

	shapes, _, err := detector.Detect(context.Background(), "m", "img", "dog", Options{
		ImageWidth:  800,
		ImageHeight: 600,
	})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	s := shapes[0]
	if s.Points[0].X != 10 || s.Points[0].Y != 20 || s.Points[1].X != 30 || s.Points[1].Y != 40 {
		t.Errorf("coordinates should pass through unchanged, got %+v", s.Points)
	}
}

func TestDetectFiltersByConfidence(t *testing.T) {
	client := &fakeClient{
		response: `[{"bbox": [1,2,3,4], "label": "keep", "confidence": 0.9}, {"bbox": [5,6,7,8], "label": "drop", "confidence": 0.1}]`,
	}
	detector := NewDetector(client)

	shapes, _, err := detector.Detect(context.Background(), "m", "img", "things", Options{
		ImageWidth:  100,
		ImageHeight: 100,
	})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(shapes) != 1 || shapes[0].Label != "keep" {
		t.Errorf("expected only high-confidence shape, got %+v", shapes)
	}
}

func TestDetectUnrecognizedResponseReturnsRawText(t *testing.T) {
	client := &fakeClient{
		response: "I cannot identify any of those objects.",
	}
	detector := NewDetector(client)

	shapes, desc, err := detector.Detect(context.Background(), "m", "img", "unicorn", Options{
		ImageWidth:  100,
		ImageHeight: 100,
	})
	if err != nil {
		t.Fatalf("unrecognized schema should not be an error, got %v", err)
	}
	if len(shapes) != 0 {
		t.Errorf("expected no shapes, got %d", len(shapes))
	}
	if desc != client.response {
		t.Errorf("expected raw text as description, got %q", desc)
	}
}

func TestDetectQueryError(t *testing.T) {
	client := &fakeClient{err: fmt.Errorf("connection refused")}
	detector := NewDetector(client)

	_, _, err := detector.Detect(context.Background(), "m", "img", "cat", Options{
		ImageWidth:  100,
		ImageHeight: 100,
	})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected wrapped query error, got %v", err)
	}
}

func TestDetectValidatesInput(t *testing.T) {
	detector := NewDetector(&fakeClient{})

	if _, _, err := detector.Detect(context.Background(), "m", "img", "  ", Options{ImageWidth: 10, ImageHeight: 10}); err == nil {
		t.Error("expected error for empty object list")
	}
	if _, _, err := detector.Detect(context.Background(), "m", "img", "cat", Options{}); err == nil {
		t.Error("expected error for missing image dimensions")
	}
}

func TestValidateObjects(t *testing.T) {
	names, err := ValidateObjects(" dog , cat ,,fire hydrant ")
	if err != nil {
		t.Fatalf("ValidateObjects failed: %v", err)
	}
	want := []string{"dog", "cat", "fire hydrant"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i, n := range names {
		if n != want[i] {
			t.Errorf("name %d: got %q, want %q", i, n, want[i])
		}
	}

	if _, err := ValidateObjects(""); err == nil {
		t.Error("expected error for empty input")
	}
	if _, err := ValidateObjects(" , ,"); err == nil {
		t.Error("expected error for separator-only input")
	}
}

func TestFilterByConfidence(t *testing.T) {
	low, high := 0.2, 0.8
	detections := []types.Detection{
		{Label: "a", Confidence: &high},
		{Label: "b", Confidence: &low},
		{Label: "c"}, // no confidence, always kept
	}

	kept := FilterByConfidence(detections, DefaultConfidenceThreshold)
	if len(kept) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(kept))
	}
	if kept[0].Label != "a" || kept[1].Label != "c" {
		t.Errorf("unexpected survivors %+v", kept)
	}
}
