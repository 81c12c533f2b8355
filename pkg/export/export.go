// Package export assembles conversation-format and task-grouped dataset
// documents from a document's current shapes and prompt history.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lexian24/autolabel/pkg/geometry"
	"github.com/lexian24/autolabel/pkg/tagcodec"
	"github.com/lexian24/autolabel/pkg/types"
)

var (
	// ErrImageDimensionsUnavailable means export cannot proceed because no
	// pixel dimensions are known for the image. Export never guesses.
	ErrImageDimensionsUnavailable = errors.New("image dimensions unavailable")
	// ErrNoContent means the shape/history input yields zero producible
	// turns; nothing is written.
	ErrNoContent = errors.New("no content to export")
)

// Task tags recognized in task-grouped export.
const (
	TaskDetection = "Detection"
	TaskOCR       = "OCR"
	TaskCaption   = "Caption"
)

// Fixed prompts for the concatenated single-file task export.
const (
	detectionTaskPrompt = "Outline all object with bounding box using this format: <p>label</p>[x1,y1,x2,y2], <p>label</p>[x1,y1,x2,y2]"
	ocrTaskPrompt       = "Read and Outline all words with bounding box using this format: <p>label</p>[x1,y1,x2,y2], <p>label</p>[x1,y1,x2,y2]"
)

// Source is everything export reads from a loaded document.
type Source struct {
	ImagePath   string
	ImageWidth  int
	ImageHeight int

	Shapes         []types.Shape
	PromptHistory  []types.PromptHistoryEntry
	CaptionHistory []types.PromptHistoryEntry
	Description    string
}

// Exporter assembles output documents. IncludeText controls whether the
// free-text image description becomes a captioning pair in single-document
// mode.
type Exporter struct {
	IncludeText bool
}

// NewExporter creates an exporter with default settings.
func NewExporter() *Exporter {
	return &Exporter{IncludeText: true}
}

// BuildConversationDocument assembles the single-document export: one
// grounding pair summarizing all current shapes, one pair per prompt-history
// entry, and optionally a captioning pair carrying the image description.
func (e *Exporter) BuildConversationDocument(src Source) (*types.ConversationDocument, error) {
	if src.ImageWidth <= 0 || src.ImageHeight <= 0 {
		return nil, fmt.Errorf("%w for %s", ErrImageDimensionsUnavailable, src.ImagePath)
	}

	var turns []types.ConversationTurn

	if len(src.Shapes) > 0 {
		prompt := groundingPrompt(src.Shapes)
		response, err := encodeShapes(src.Shapes, src.ImageWidth, src.ImageHeight)
		if err != nil {
			return nil, err
		}
		turns = append(turns,
			types.ConversationTurn{From: types.SpeakerHuman, Value: prompt, Attribute: "Grounding"},
			types.ConversationTurn{From: types.SpeakerModel, Value: response, Attribute: "Grounding"},
		)
	}

	turns = append(turns, historyTurns(src.PromptHistory)...)

	if e.IncludeText && strings.TrimSpace(src.Description) != "" {
		turns = append(turns,
			types.ConversationTurn{From: types.SpeakerHuman, Value: "Describe what you see in the image.", Attribute: "Image Captioning"},
			types.ConversationTurn{From: types.SpeakerModel, Value: src.Description, Attribute: "Image Captioning"},
		)
	}

	if len(turns) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoContent, src.ImagePath)
	}

	return &types.ConversationDocument{
		Image:         src.ImagePath,
		Conversations: turns,
	}, nil
}

// BuildTaskDocuments assembles the task-grouped export: one document per
// caption-history entry, plus one per non-empty Detection/OCR shape
// partition. Untagged shapes are excluded, never defaulted into a task.
func (e *Exporter) BuildTaskDocuments(src Source) ([]types.ConversationDocument, error) {
	if src.ImageWidth <= 0 || src.ImageHeight <= 0 {
		return nil, fmt.Errorf("%w for %s", ErrImageDimensionsUnavailable, src.ImagePath)
	}

	imageName := filepath.Base(src.ImagePath)
	var docs []types.ConversationDocument

	for _, entry := range src.CaptionHistory {
		prompt := strings.TrimSpace(entry.Prompt)
		description := strings.TrimSpace(entry.Description)
		if prompt == "" || description == "" {
			continue
		}
		docs = append(docs, types.ConversationDocument{
			Image: imageName,
			Task:  TaskCaption,
			Conversations: []types.ConversationTurn{
				{From: types.SpeakerHuman, Value: prompt},
				{From: types.SpeakerModel, Value: description},
			},
		})
	}

	var detectionShapes, ocrShapes []types.Shape
	for _, s := range src.Shapes {
		switch s.TaskTag {
		case TaskDetection:
			detectionShapes = append(detectionShapes, s)
		case TaskOCR:
			ocrShapes = append(ocrShapes, s)
		}
	}

	if len(detectionShapes) > 0 {
		doc, err := taskDocument(imageName, TaskDetection, detectionTaskPrompt, detectionShapes, src.ImageWidth, src.ImageHeight)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if len(ocrShapes) > 0 {
		doc, err := taskDocument(imageName, TaskOCR, ocrTaskPrompt, ocrShapes, src.ImageWidth, src.ImageHeight)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoContent, src.ImagePath)
	}
	return docs, nil
}

// TaskLabelPrompt is the per-file prompt template naming the labels being
// outlined, used by split-file export.
func TaskLabelPrompt(shapes []types.Shape) string {
	labels := uniqueLabels(shapes)
	return fmt.Sprintf(`Outline the position of each %s and output all the coordinates in JSON format {"bbox_2d": [x1, y1, x2, y2], "label": "label"}`,
		strings.Join(labels, ", "))
}

// WriteConversationDocument writes a single-document export as indented JSON.
func (e *Exporter) WriteConversationDocument(doc *types.ConversationDocument, path string) error {
	return writeJSON(path, doc)
}

// WriteSingleFile writes task documents concatenated into one file,
// newline-separated.
func (e *Exporter) WriteSingleFile(docs []types.ConversationDocument, path string) error {
	if len(docs) == 0 {
		return ErrNoContent
	}

	var buf strings.Builder
	for i, doc := range docs {
		if i > 0 {
			buf.WriteByte('\n')
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		buf.Write(data)
	}
	return os.WriteFile(path, []byte(buf.String()), 0644)
}

// WriteTaskFiles writes one file per task document into outDir:
// {base}_detection.json, {base}_ocr.json, {base}_caption_{NNN}.json.
// Returns the number of files created. Split-file documents use the
// label-listing prompt for Detection/OCR.
func (e *Exporter) WriteTaskFiles(src Source, outDir string) (int, error) {
	docs, err := e.BuildTaskDocuments(src)
	if err != nil {
		return 0, err
	}

	base := strings.TrimSuffix(filepath.Base(src.ImagePath), filepath.Ext(src.ImagePath))
	created := 0
	captionIndex := 0

	for _, doc := range docs {
		var name string
		switch doc.Task {
		case TaskCaption:
			captionIndex++
			name = fmt.Sprintf("%s_caption_%03d.json", base, captionIndex)
		case TaskDetection:
			name = base + "_detection.json"
			doc.Conversations[0].Value = TaskLabelPrompt(shapesForTask(src.Shapes, TaskDetection))
		case TaskOCR:
			name = base + "_ocr.json"
			doc.Conversations[0].Value = TaskLabelPrompt(shapesForTask(src.Shapes, TaskOCR))
		default:
			continue
		}
		if err := writeJSON(filepath.Join(outDir, name), doc); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func shapesForTask(shapes []types.Shape, task string) []types.Shape {
	var out []types.Shape
	for _, s := range shapes {
		if s.TaskTag == task {
			out = append(out, s)
		}
	}
	return out
}

func taskDocument(imageName, task, prompt string, shapes []types.Shape, width, height int) (types.ConversationDocument, error) {
	response, err := FormatShapesAsJSON(shapes, width, height)
	if err != nil {
		return types.ConversationDocument{}, err
	}
	return types.ConversationDocument{
		Image: imageName,
		Task:  task,
		Conversations: []types.ConversationTurn{
			{From: types.SpeakerHuman, Value: prompt},
			{From: types.SpeakerModel, Value: response},
		},
	}, nil
}

// groundingPrompt derives the summary prompt from the shapes present: the
// annotation vocabulary follows the geometry mix, and a single shared label
// is named directly.
func groundingPrompt(shapes []types.Shape) string {
	hasBox, hasPolygon, hasPoint := false, false, false
	for _, s := range shapes {
		switch s.Type {
		case types.GeometryBox:
			hasBox = true
		case types.GeometryPolygon:
			hasPolygon = true
		case types.GeometryPoint:
			hasPoint = true
		}
	}

	var annotationType string
	switch {
	case hasBox:
		annotationType = "bounding boxes"
	case hasPolygon:
		annotationType = "polygons"
	case hasPoint:
		annotationType = "points"
	default:
		annotationType = "annotations"
	}

	labels := uniqueLabels(shapes)
	if len(labels) == 1 {
		return fmt.Sprintf("Detect all %s in the image and describe using %s.", labels[0], annotationType)
	}
	return fmt.Sprintf("Detect all objects in the image and describe using %s.", annotationType)
}

// encodeShapes renders all shapes as a single embedded-tag response in
// normalized coordinates.
func encodeShapes(shapes []types.Shape, width, height int) (string, error) {
	records := make([]types.AnnotationRecord, 0, len(shapes))
	for _, s := range shapes {
		coords, err := geometry.ToNormalized(s.Points, width, height)
		if err != nil {
			return "", err
		}
		records = append(records, types.AnnotationRecord{
			Label:       s.Label,
			Coordinates: coords,
			Geometry:    s.Type,
		})
	}
	return tagcodec.Encode(records), nil
}

// FormatShapesAsJSON renders shapes as comma-joined bbox_2d JSON objects
// with coordinates normalized and rounded to 3 decimals. Polygons degrade to
// their axis-aligned bounding box; point shapes have no box and are skipped.
func FormatShapesAsJSON(shapes []types.Shape, width, height int) (string, error) {
	if width <= 0 || height <= 0 {
		return "", ErrImageDimensionsUnavailable
	}

	var parts []string
	for _, s := range shapes {
		var x1, y1, x2, y2 float64
		switch {
		case s.Type == types.GeometryBox && len(s.Points) >= 2:
			x1, y1 = s.Points[0].X, s.Points[0].Y
			x2, y2 = s.Points[1].X, s.Points[1].Y
		case s.Type == types.GeometryPolygon && len(s.Points) >= 3:
			x1, y1, x2, y2 = geometry.BoundingBox(s.Points)
		default:
			continue
		}

		label, err := json.Marshal(s.Label)
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf(`{"bbox_2d": [%s,%s,%s,%s], "label": %s}`,
			tagcodec.FormatCoord(x1/float64(width)),
			tagcodec.FormatCoord(y1/float64(height)),
			tagcodec.FormatCoord(x2/float64(width)),
			tagcodec.FormatCoord(y2/float64(height)),
			label))
	}
	return strings.Join(parts, ","), nil
}

// historyTurns regenerates conversation pairs from grounding-category prompt
// history, mapping entry types back onto attribute tags. Caption entries are
// not repeated here; the image description pair carries the caption content.
func historyTurns(history []types.PromptHistoryEntry) []types.ConversationTurn {
	var turns []types.ConversationTurn
	for _, entry := range history {
		if entry.Prompt == "" || entry.Description == "" {
			continue
		}

		var attribute string
		switch entry.Type {
		case types.EntryAILabeling, types.EntryObjectDetection, types.EntryGrounding:
			attribute = "Grounding"
		case types.EntryBboxDescription:
			attribute = "Region Captioning"
		default:
			if len(entry.DetectedLabels) > 0 {
				attribute = "Grounding"
			} else {
				continue
			}
		}

		turns = append(turns,
			types.ConversationTurn{From: types.SpeakerHuman, Value: entry.Prompt, Attribute: attribute},
			types.ConversationTurn{From: types.SpeakerModel, Value: entry.Description, Attribute: attribute},
		)
	}
	return turns
}

func uniqueLabels(shapes []types.Shape) []string {
	seen := map[string]struct{}{}
	var labels []string
	for _, s := range shapes {
		if _, ok := seen[s.Label]; ok {
			continue
		}
		seen[s.Label] = struct{}{}
		labels = append(labels, s.Label)
	}
	return labels
}

// writeJSON writes v as indented JSON, creating parent directories. A failed
// marshal never leaves a partially written file behind.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
