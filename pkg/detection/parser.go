// Package detection parses raw vision-language model responses into canonical
// detection records and converts them into annotation shapes.
//
// Two response families are recognized: embedded-tag text
// ("There are <p>label</p>[x1,y1,x2,y2] ... in the image.") and JSON arrays
// in one of three field shapes, optionally wrapped in a fenced code block:
//
//	[{"bbox":    [x1,y1,x2,y2], "label": "..."}, ...]
//	[{"bbox_2d": [x1,y1,x2,y2], "label": "..."}, ...]
//	[{"position": {"x": ..., "y": ...}, "type": "..."}, ...]
//
// All three normalize into the canonical types.Detection. The whole array
// must match one schema consistently; mixed arrays are rejected.
package detection

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/lexian24/autolabel/pkg/tagcodec"
	"github.com/lexian24/autolabel/pkg/types"
)

// SchemaKind identifies the response family a raw payload uses.
type SchemaKind int

const (
	SchemaUnrecognized SchemaKind = iota
	SchemaEmbeddedTag
	SchemaJSONArray
)

func (k SchemaKind) String() string {
	switch k {
	case SchemaEmbeddedTag:
		return "embedded-tag"
	case SchemaJSONArray:
		return "json-array"
	default:
		return "unrecognized"
	}
}

// UnrecognizedSchemaError reports a payload that matches no known response
// schema. Raw carries the original text so callers can fall back to showing
// it as a plain description.
type UnrecognizedSchemaError struct {
	Raw string
}

func (e *UnrecognizedSchemaError) Error() string {
	return "unrecognized detection response schema"
}

// Response is the normalized result of parsing one raw model payload.
//
// Records is set for embedded-tag responses; coordinates are normalized [0,1]
// and may be points, boxes, or polygons. Detections is set for JSON-array
// responses; bboxes are in model-input pixel space unless the caller knows
// the payload used normalized coordinates. Description carries leftover prose.
type Response struct {
	Schema      SchemaKind
	Records     []types.AnnotationRecord
	Detections  []types.Detection
	Description string
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)```")

// Classify decides which response family a raw payload uses without fully
// parsing it. Embedded tags win over JSON: a payload containing any tag is
// treated as embedded-tag text.
func Classify(raw string) SchemaKind {
	if tagcodec.HasTags(raw) {
		return SchemaEmbeddedTag
	}
	cleaned := strings.TrimSpace(raw)
	if strings.Contains(cleaned, "```json") {
		return SchemaJSONArray
	}
	if m := fencePattern.FindStringSubmatch(cleaned); m != nil {
		cleaned = strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(cleaned, "[") && strings.HasSuffix(cleaned, "]") {
		return SchemaJSONArray
	}
	return SchemaUnrecognized
}

// Parse normalizes a raw model payload into a Response. An unclassifiable or
// inconsistently structured payload fails with *UnrecognizedSchemaError; no
// partial results are returned in that case.
func Parse(raw string) (*Response, error) {
	switch Classify(raw) {
	case SchemaEmbeddedTag:
		// The tag scan tolerates malformed individual tags; surrounding
		// prose is kept as the description.
		return &Response{
			Schema:      SchemaEmbeddedTag,
			Records:     tagcodec.Parse(raw),
			Description: raw,
		}, nil

	case SchemaJSONArray:
		cleaned := strings.TrimSpace(raw)
		if m := fencePattern.FindStringSubmatch(cleaned); m != nil {
			cleaned = strings.TrimSpace(m[1])
		}
		detections, err := parseJSONArray(cleaned)
		if err != nil {
			return nil, &UnrecognizedSchemaError{Raw: raw}
		}
		return &Response{
			Schema:     SchemaJSONArray,
			Detections: detections,
		}, nil

	default:
		return nil, &UnrecognizedSchemaError{Raw: raw}
	}
}

// optional fields shared by all JSON schemas
type detectionExtras struct {
	Description string   `json:"description"`
	Confidence  *float64 `json:"confidence"`
}

func parseJSONArray(cleaned string) ([]types.Detection, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, err
	}

	matchers := []func(json.RawMessage) (types.Detection, bool){
		matchBboxItem,
		matchBbox2DItem,
		matchPositionItem,
	}

	for _, match := range matchers {
		detections := make([]types.Detection, 0, len(items))
		ok := true
		for _, item := range items {
			d, matched := match(item)
			if !matched {
				ok = false
				break
			}
			detections = append(detections, d)
		}
		if ok {
			return detections, nil
		}
	}
	return nil, &UnrecognizedSchemaError{Raw: cleaned}
}

func matchBboxItem(raw json.RawMessage) (types.Detection, bool) {
	var item struct {
		Bbox  []float64 `json:"bbox"`
		Label *string   `json:"label"`
		detectionExtras
	}
	if err := json.Unmarshal(raw, &item); err != nil || len(item.Bbox) != 4 || item.Label == nil {
		return types.Detection{}, false
	}
	return types.Detection{
		Bbox:        item.Bbox,
		Label:       *item.Label,
		Description: item.Description,
		Confidence:  item.Confidence,
	}, true
}

func matchBbox2DItem(raw json.RawMessage) (types.Detection, bool) {
	var item struct {
		Bbox2D []float64 `json:"bbox_2d"`
		Label  *string   `json:"label"`
		detectionExtras
	}
	if err := json.Unmarshal(raw, &item); err != nil || len(item.Bbox2D) != 4 || item.Label == nil {
		return types.Detection{}, false
	}
	return types.Detection{
		Bbox:        item.Bbox2D,
		Label:       *item.Label,
		Description: item.Description,
		Confidence:  item.Confidence,
	}, true
}

func matchPositionItem(raw json.RawMessage) (types.Detection, bool) {
	var item struct {
		Position *struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"position"`
		Type *string `json:"type"`
		detectionExtras
	}
	if err := json.Unmarshal(raw, &item); err != nil || item.Position == nil || item.Type == nil {
		return types.Detection{}, false
	}
	// Point detection as a zero-area box.
	return types.Detection{
		Bbox:        []float64{item.Position.X, item.Position.Y, item.Position.X, item.Position.Y},
		Label:       *item.Type,
		Description: item.Description,
		Confidence:  item.Confidence,
	}, true
}
