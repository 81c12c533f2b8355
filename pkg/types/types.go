package types

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	SpeakerHuman Speaker = "human"
	SpeakerModel Speaker = "gpt"
)

// GeometryKind is the shape class inferred from coordinate count.
type GeometryKind string

const (
	GeometryPoint   GeometryKind = "point"
	GeometryBox     GeometryKind = "rectangle"
	GeometryPolygon GeometryKind = "polygon"
)

// AnnotationRecord is one labeled region parsed from embedded-tag text.
// Coordinates are normalized to [0,1] relative to image width/height; values
// outside that range mean the region extends past the visible image and are
// kept as-is.
type AnnotationRecord struct {
	Label       string       `json:"label"`
	Coordinates []float64    `json:"coordinates"`
	Geometry    GeometryKind `json:"geometry"`
}

// ConversationTurn is a single entry in a conversation document.
type ConversationTurn struct {
	From      Speaker `json:"from"`
	Value     string  `json:"value"`
	Attribute string  `json:"attribute,omitempty"`
}

// ConversationDocument is the on-disk conversation format: an image reference
// plus an ordered turn sequence, conceptually organized as (human, gpt) pairs.
// Task is set only on task-grouped export output.
type ConversationDocument struct {
	Image         string             `json:"image"`
	Task          string             `json:"task,omitempty"`
	Conversations []ConversationTurn `json:"conversations"`
}

// Point is an absolute pixel coordinate.
type Point struct {
	X float64
	Y float64
}

// Shape is a labeled geometric region in absolute pixel space, as stored by
// the annotation tool. TaskTag groups shapes for task-grouped export
// ("Detection", "OCR"); an empty tag means the shape is untagged.
type Shape struct {
	Label       string
	Type        GeometryKind
	Points      []Point
	TaskTag     string
	Description string
}

// Category of a prompt-history entry.
const (
	CategoryGrounding = "grounding"
	CategoryCaption   = "caption"
)

// Entry types tracked on prompt history. AILabeling and ObjectDetection are
// both grounding; the split is metadata only.
const (
	EntryAILabeling      = "ai_labeling"
	EntryObjectDetection = "object_detection"
	EntryGrounding       = "grounding"
	EntryBboxDescription = "bbox_description"
	EntryText            = "text"
)

// PromptHistoryEntry records one completed (prompt, response) inference round.
// DetectedLabels and DetectionCount are populated only for grounding entries.
type PromptHistoryEntry struct {
	Prompt         string   `json:"prompt"`
	Description    string   `json:"description"`
	Type           string   `json:"type"`
	Category       string   `json:"category"`
	DetectedLabels []string `json:"detected_objects,omitempty"`
	DetectionCount int      `json:"detection_count,omitempty"`
}

// Detection is the canonical record every recognized external detection
// schema normalizes into. Bbox is [x1,y1,x2,y2]; a point detection becomes a
// zero-area box. Coordinate space depends on the source schema: normalized
// [0,1] for embedded-tag responses, model-input pixels for JSON responses.
type Detection struct {
	Bbox        []float64 `json:"bbox"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
}

// Stats summarizes conversation classification for one document.
type Stats struct {
	TotalTurns       int `json:"total_conversations"`
	GroundingUnits   int `json:"grounding_conversations"`
	TextUnits        int `json:"pure_text_conversations"`
	TotalAnnotations int `json:"total_annotations"`
}
