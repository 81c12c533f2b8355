package detection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/lexian24/autolabel/pkg/client"
	"github.com/lexian24/autolabel/pkg/geometry"
	"github.com/lexian24/autolabel/pkg/types"
)

// DefaultConfidenceThreshold drops low-confidence detections; detections
// without a confidence value always pass.
const DefaultConfidenceThreshold = 0.3

// FormatDetectionPrompt builds the find-and-locate prompt for a
// comma-separated object list, asking for embedded-tag output in normalized
// coordinates.
func FormatDetectionPrompt(objects string) string {
	return fmt.Sprintf(
		"Find and locate %s in this image. "+
			"Provide the bounding box coordinates and labels in the format: "+
			"There are <p>label</p>[x1,y1,x2,y2], <p>label</p>[x1,y1,x2,y2] in the image. "+
			"Use normalized coordinates between 0 and 1.",
		strings.TrimSpace(objects))
}

// ValidateObjects parses a comma-separated object list into cleaned names.
func ValidateObjects(objects string) ([]string, error) {
	if strings.TrimSpace(objects) == "" {
		return nil, fmt.Errorf("no objects specified for detection")
	}
	var names []string
	for _, o := range strings.Split(objects, ",") {
		if o = strings.TrimSpace(o); o != "" {
			names = append(names, o)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no valid objects found after parsing")
	}
	return names, nil
}

// FilterByConfidence keeps detections at or above the threshold. Detections
// carrying no confidence are kept.
func FilterByConfidence(detections []types.Detection, threshold float64) []types.Detection {
	filtered := make([]types.Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence == nil || *d.Confidence >= threshold {
			filtered = append(filtered, d)
		} else {
			log.Printf("detection: dropping %q with confidence %.2f", d.Label, *d.Confidence)
		}
	}
	return filtered
}

// Options configures how detection coordinates are mapped to image pixels.
type Options struct {
	ImageWidth  int
	ImageHeight int

	// Model input dimensions for JSON responses whose coordinates are
	// relative to the resized model input. Zero means the coordinates are
	// already in image pixel space.
	ModelInputWidth  int
	ModelInputHeight int

	// ConfidenceThreshold <= 0 uses DefaultConfidenceThreshold.
	ConfidenceThreshold float64
}

// Detector runs object detection through an external VLM client and converts
// the parsed response into absolute-pixel shapes.
type Detector struct {
	client client.VLMClient
}

// NewDetector creates a detector backed by a VLM client.
func NewDetector(c client.VLMClient) *Detector {
	return &Detector{client: c}
}

// Detect asks the model to locate the given comma-separated objects in the
// image and returns the resulting shapes plus any description text.
//
// When the model response matches no known schema the raw text is returned
// as the description with zero shapes; the caller decides how to surface it.
func (d *Detector) Detect(ctx context.Context, model, imageB64, objects string, opts Options) ([]types.Shape, string, error) {
	if _, err := ValidateObjects(objects); err != nil {
		return nil, "", err
	}
	if opts.ImageWidth <= 0 || opts.ImageHeight <= 0 {
		return nil, "", fmt.Errorf("invalid image dimensions %dx%d", opts.ImageWidth, opts.ImageHeight)
	}

	prompt := FormatDetectionPrompt(objects)
	raw, err := d.client.Query(ctx, model, prompt, imageB64)
	if err != nil {
		return nil, "", fmt.Errorf("vlm query failed: %w", err)
	}

	resp, err := Parse(raw)
	if err != nil {
		var unrec *UnrecognizedSchemaError
		if errors.As(err, &unrec) {
			log.Printf("detection: response matches no known schema, returning raw text")
			return nil, unrec.Raw, nil
		}
		return nil, "", err
	}

	return d.responseToShapes(resp, opts)
}

func (d *Detector) responseToShapes(resp *Response, opts Options) ([]types.Shape, string, error) {
	switch resp.Schema {
	case SchemaEmbeddedTag:
		shapes := make([]types.Shape, 0, len(resp.Records))
		for _, rec := range resp.Records {
			shape, err := geometry.ShapeFromRecord(rec, opts.ImageWidth, opts.ImageHeight)
			if err != nil {
				return nil, "", err
			}
			shapes = append(shapes, shape)
		}
		return shapes, resp.Description, nil

	case SchemaJSONArray:
		threshold := opts.ConfidenceThreshold
		if threshold <= 0 {
			threshold = DefaultConfidenceThreshold
		}
		detections := FilterByConfidence(resp.Detections, threshold)

		modelW, modelH := opts.ModelInputWidth, opts.ModelInputHeight
		if modelW <= 0 || modelH <= 0 {
			// Coordinates already in image pixel space.
			modelW, modelH = opts.ImageWidth, opts.ImageHeight
		}

		shapes := make([]types.Shape, 0, len(detections))
		for _, det := range detections {
			coords, err := geometry.ScaleFromModelSpace(det.Bbox, modelW, modelH, opts.ImageWidth, opts.ImageHeight)
			if err != nil {
				return nil, "", err
			}
			shapes = append(shapes, types.Shape{
				Label: det.Label,
				Type:  types.GeometryBox,
				Points: []types.Point{
					{X: coords[0], Y: coords[1]},
					{X: coords[2], Y: coords[3]},
				},
				Description: det.Description,
			})
		}
		return shapes, resp.Description, nil

	default:
		return nil, resp.Description, nil
	}
}
