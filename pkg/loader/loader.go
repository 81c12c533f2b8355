// Package loader reads annotation files from disk: conversation-format
// documents (image reference plus human/gpt turn sequence) and labelme-style
// shape files used as input to the dataset converter.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/lexian24/autolabel/internal/utils"
	"github.com/lexian24/autolabel/pkg/classifier"
	"github.com/lexian24/autolabel/pkg/geometry"
	"github.com/lexian24/autolabel/pkg/tagcodec"
	"github.com/lexian24/autolabel/pkg/types"
)

var (
	// ErrMissingImageReference means the document names no image.
	ErrMissingImageReference = errors.New("document has no image reference")
	// ErrImageNotFound means the referenced image file does not exist.
	ErrImageNotFound = errors.New("image file not found")
)

// Document is a fully loaded annotation document: resolved image, shapes in
// absolute pixel space, classified turns, and reconstructed prompt history.
type Document struct {
	Path        string
	ImagePath   string
	ImageWidth  int
	ImageHeight int

	Shapes []types.Shape
	Turns  []types.ConversationTurn

	Stats          types.Stats
	Grounding      []types.ConversationTurn
	Text           []types.ConversationTurn
	PromptHistory  []types.PromptHistoryEntry
	CaptionHistory []types.PromptHistoryEntry

	// Description is the free-text image description, taken from the most
	// recent prompt-history entry.
	Description string
}

// Probe reports which top-level fields a JSON file carries, without
// interpreting them. Used by the batch converter's skip rules.
type Probe struct {
	HasConversations  bool
	HasTask           bool
	HasShapes         bool
	HasCaptionHistory bool
}

// ProbeFile inspects the top-level keys of a JSON object file.
func ProbeFile(path string) (Probe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Probe{}, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Probe{}, fmt.Errorf("not a JSON object: %w", err)
	}
	_, hasConv := fields["conversations"]
	_, hasTask := fields["task"]
	_, hasShapes := fields["shapes"]
	_, hasCaptions := fields["caption_history"]
	return Probe{
		HasConversations:  hasConv,
		HasTask:           hasTask,
		HasShapes:         hasShapes,
		HasCaptionHistory: hasCaptions,
	}, nil
}

// IsConversationFormat reports whether the file is a conversation-format
// document: a JSON object with a conversations array whose every element has
// "from" restricted to human/gpt and a "value".
func IsConversationFormat(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var doc struct {
		Conversations []map[string]json.RawMessage `json:"conversations"`
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	if _, ok := fields["conversations"]; !ok {
		return false
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}

	for _, turn := range doc.Conversations {
		rawFrom, ok := turn["from"]
		if !ok {
			return false
		}
		if _, ok := turn["value"]; !ok {
			return false
		}
		var from string
		if err := json.Unmarshal(rawFrom, &from); err != nil {
			return false
		}
		if from != string(types.SpeakerHuman) && from != string(types.SpeakerModel) {
			return false
		}
	}
	return true
}

// LoadConversation loads a conversation-format file: resolves and measures
// the referenced image, converts every annotation in gpt responses into an
// absolute-pixel shape, classifies the turns, and reconstructs the prompt
// history.
func LoadConversation(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw types.ConversationDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	imagePath, err := resolveImagePath(path, raw.Image)
	if err != nil {
		return nil, err
	}

	width, height, err := utils.ImageDimensions(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image dimensions for %s: %w", imagePath, err)
	}

	doc := &Document{
		Path:        path,
		ImagePath:   imagePath,
		ImageWidth:  width,
		ImageHeight: height,
		Turns:       raw.Conversations,
	}

	// One shape per valid annotation across all gpt responses.
	for _, turn := range raw.Conversations {
		if turn.From != types.SpeakerModel {
			continue
		}
		for _, rec := range tagcodec.Parse(turn.Value) {
			shape, err := geometry.ShapeFromRecord(rec, width, height)
			if err != nil {
				log.Printf("loader: skipping annotation %q: %v", rec.Label, err)
				continue
			}
			doc.Shapes = append(doc.Shapes, shape)
		}
	}

	res := classifier.PairAndClassify(raw.Conversations)
	doc.Stats = res.Stats
	doc.Grounding = res.Grounding
	doc.Text = res.Text
	doc.PromptHistory = classifier.ReconstructPromptHistory(raw.Conversations)
	if n := len(doc.PromptHistory); n > 0 {
		doc.Description = doc.PromptHistory[n-1].Description
	}

	return doc, nil
}

// labelme-style shape file, the converter's other input format
type labelmeFile struct {
	ImagePath string `json:"imagePath"`
	Shapes    []struct {
		Label       string      `json:"label"`
		Points      [][]float64 `json:"points"`
		ShapeType   string      `json:"shape_type"`
		VLMTask     string      `json:"vlm_task"`
		Description string      `json:"description"`
	} `json:"shapes"`
	CaptionHistory []struct {
		Prompt      string `json:"prompt"`
		Description string `json:"description"`
	} `json:"caption_history"`
}

// LoadLabelme loads a labelme-style shape file. The image is located next to
// the file (or in a sibling image directory) by stem; points are already in
// absolute pixel space.
func LoadLabelme(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw labelmeFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	imagePath := utils.FindImageForJSON(path)
	if imagePath == "" && raw.ImagePath != "" {
		imagePath, _ = resolveImagePath(path, raw.ImagePath)
	}
	if imagePath == "" {
		return nil, fmt.Errorf("%w: no image for %s", ErrImageNotFound, path)
	}

	width, height, err := utils.ImageDimensions(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image dimensions for %s: %w", imagePath, err)
	}

	doc := &Document{
		Path:        path,
		ImagePath:   imagePath,
		ImageWidth:  width,
		ImageHeight: height,
	}

	for _, s := range raw.Shapes {
		kind := types.GeometryKind(s.ShapeType)
		switch kind {
		case types.GeometryPoint, types.GeometryBox, types.GeometryPolygon:
		default:
			log.Printf("loader: skipping shape %q with unsupported type %q", s.Label, s.ShapeType)
			continue
		}
		points := make([]types.Point, 0, len(s.Points))
		for _, p := range s.Points {
			if len(p) != 2 {
				continue
			}
			points = append(points, types.Point{X: p[0], Y: p[1]})
		}
		doc.Shapes = append(doc.Shapes, types.Shape{
			Label:       s.Label,
			Type:        kind,
			Points:      points,
			TaskTag:     s.VLMTask,
			Description: s.Description,
		})
	}

	for _, c := range raw.CaptionHistory {
		doc.CaptionHistory = append(doc.CaptionHistory, types.PromptHistoryEntry{
			Prompt:      c.Prompt,
			Description: c.Description,
			Type:        types.EntryText,
			Category:    types.CategoryCaption,
		})
	}

	return doc, nil
}

// resolveImagePath turns a document's image reference into an existing
// absolute path: as given if absolute, else relative to the document, with a
// basename-only fallback in the document's directory.
func resolveImagePath(docPath, imageRef string) (string, error) {
	if imageRef == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingImageReference, docPath)
	}

	imagePath := imageRef
	baseDir := filepath.Dir(docPath)
	if !filepath.IsAbs(imagePath) {
		imagePath = filepath.Join(baseDir, imagePath)
	}
	if utils.FileExists(imagePath) {
		return imagePath, nil
	}

	alt := filepath.Join(baseDir, filepath.Base(imageRef))
	if utils.FileExists(alt) {
		log.Printf("loader: found image at alternative path %s", alt)
		return alt, nil
	}

	return "", fmt.Errorf("%w: %s", ErrImageNotFound, imageRef)
}
