// Package autolabel converts between the annotation formats used when
// building vision-language grounding datasets.
//
// Three representations are supported:
//
//  1. Conversation-format documents: an image reference plus human/gpt turn
//     pairs, where model responses embed labeled regions as
//     <p>label</p>[x1,y1,x2,y2] tags in normalized coordinates.
//  2. Labelme-style shape files: labeled geometric shapes in absolute pixel
//     space, optionally tagged with a task (Detection, OCR) and carrying a
//     caption history.
//  3. Task-grouped training documents: one conversation per task with model
//     responses rendered as bbox_2d JSON objects.
//
// Basic usage:
//
//	package main
//
//	import (
//		"log"
//
//		"github.com/lexian24/autolabel"
//	)
//
//	func main() {
//		converter := autolabel.New()
//
//		report, err := converter.ConvertDirectory("data/", "out/")
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("converted %d/%d files", report.Converted, report.Total)
//	}
//
// The package consists of five core components:
//
// 1. Tag codec (pkg/tagcodec): parses and renders the embedded annotation mini-language
// 2. Geometry (pkg/geometry): converts between normalized, image-pixel, and model-input coordinate spaces
// 3. Detection (pkg/detection): normalizes raw VLM responses into canonical detection records
// 4. Classifier (pkg/classifier): partitions conversations into grounding versus pure text
// 5. Export (pkg/export): assembles conversation-format and task-grouped output documents
//
// An optional VLM boundary (pkg/ollama, pkg/llamacpp) runs object detection
// against a live model and feeds its raw output through the same parsing
// pipeline.
package autolabel

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/lexian24/autolabel/internal/utils"
	"github.com/lexian24/autolabel/pkg/export"
	"github.com/lexian24/autolabel/pkg/loader"
	"github.com/lexian24/autolabel/pkg/types"
)

// Version of the autolabel library
const Version = "1.0.0"

// ExportSuffix marks files produced by the batch converter; inputs whose
// stem already contains it are skipped.
const ExportSuffix = "_sharegpt"

// Converter ties loading, classification, and export into one pipeline.
type Converter struct {
	exporter *export.Exporter
}

// New creates a Converter with default settings.
func New() *Converter {
	return &Converter{exporter: export.NewExporter()}
}

// Report summarizes a directory conversion run.
type Report struct {
	Total     int
	Converted int
	Skipped   int
	Failed    int
}

// ConvertFile converts one labelme-style shape file into a task-grouped
// document file (all task documents concatenated, newline-separated).
// A document that produces no content fails rather than writing an empty
// file.
func (c *Converter) ConvertFile(jsonPath, outputPath string) error {
	doc, err := loader.LoadLabelme(jsonPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", jsonPath, err)
	}

	docs, err := c.exporter.BuildTaskDocuments(sourceFromDocument(doc))
	if err != nil {
		return err
	}
	return c.exporter.WriteSingleFile(docs, outputPath)
}

// ConvertDirectory converts every eligible .json file under inputDir,
// writing one {stem}_sharegpt.json per input into outputDir. Files already
// exported, files already in task-grouped form, and files carrying neither
// shapes nor caption history are skipped. Each document converts
// independently; one failure never aborts the batch.
func (c *Converter) ConvertDirectory(inputDir, outputDir string) (Report, error) {
	var report Report

	if !utils.DirExists(inputDir) {
		return report, fmt.Errorf("input directory does not exist: %s", inputDir)
	}
	if err := utils.EnsureDir(outputDir); err != nil {
		return report, fmt.Errorf("failed to create output directory: %w", err)
	}

	files, err := utils.ListJSONFiles(inputDir)
	if err != nil {
		return report, fmt.Errorf("failed to list input files: %w", err)
	}
	report.Total = len(files)

	for _, file := range files {
		if strings.Contains(utils.Stem(file), ExportSuffix) {
			report.Skipped++
			continue
		}

		probe, err := loader.ProbeFile(file)
		if err != nil {
			log.Printf("autolabel: skipping unreadable file %s: %v", file, err)
			report.Skipped++
			continue
		}
		// Already in task-grouped output form.
		if probe.HasConversations && probe.HasTask {
			report.Skipped++
			continue
		}
		// Nothing convertible.
		if !probe.HasShapes && !probe.HasCaptionHistory {
			report.Skipped++
			continue
		}

		outPath := filepath.Join(outputDir, utils.Stem(file)+ExportSuffix+".json")
		if err := c.ConvertFile(file, outPath); err != nil {
			log.Printf("autolabel: failed to convert %s: %v", file, err)
			report.Failed++
			continue
		}
		report.Converted++
	}

	return report, nil
}

// ExportConversation writes a loaded document back out in single-document
// conversation form: a grounding pair over all shapes, regenerated
// prompt-history pairs, and the image description.
func (c *Converter) ExportConversation(doc *loader.Document, outputPath string) error {
	out, err := c.exporter.BuildConversationDocument(sourceFromDocument(doc))
	if err != nil {
		return err
	}
	return c.exporter.WriteConversationDocument(out, outputPath)
}

// ExportTaskFiles writes a loaded document as one file per task/caption into
// outputDir and returns the number of files created.
func (c *Converter) ExportTaskFiles(doc *loader.Document, outputDir string) (int, error) {
	if err := utils.EnsureDir(outputDir); err != nil {
		return 0, err
	}
	return c.exporter.WriteTaskFiles(sourceFromDocument(doc), outputDir)
}

// FileAnalysis summarizes the conversation mix of one document.
type FileAnalysis struct {
	Filename              string      `json:"filename"`
	Image                 string      `json:"image"`
	Stats                 types.Stats `json:"stats"`
	GroundingPairs        int         `json:"grounding_conversation_pairs"`
	TextPairs             int         `json:"text_conversation_pairs"`
	HasSpatialAnnotations bool        `json:"has_spatial_annotations"`
}

// AnalyzeFile loads a conversation-format file and reports its
// grounding/text composition.
func AnalyzeFile(path string) (*FileAnalysis, error) {
	doc, err := loader.LoadConversation(path)
	if err != nil {
		return nil, err
	}
	return &FileAnalysis{
		Filename:              path,
		Image:                 doc.ImagePath,
		Stats:                 doc.Stats,
		GroundingPairs:        len(doc.Grounding) / 2,
		TextPairs:             len(doc.Text) / 2,
		HasSpatialAnnotations: doc.Stats.TotalAnnotations > 0,
	}, nil
}

func sourceFromDocument(doc *loader.Document) export.Source {
	return export.Source{
		ImagePath:      doc.ImagePath,
		ImageWidth:     doc.ImageWidth,
		ImageHeight:    doc.ImageHeight,
		Shapes:         doc.Shapes,
		PromptHistory:  doc.PromptHistory,
		CaptionHistory: doc.CaptionHistory,
		Description:    doc.Description,
	}
}
