package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/lexian24/autolabel"
	"github.com/lexian24/autolabel/internal/config"
	"github.com/lexian24/autolabel/internal/utils"
	"github.com/lexian24/autolabel/pkg/client"
	"github.com/lexian24/autolabel/pkg/detection"
	"github.com/lexian24/autolabel/pkg/llamacpp"
	"github.com/lexian24/autolabel/pkg/ollama"
	"github.com/lexian24/autolabel/pkg/types"
)

func main() {
	var mode, in, out, cfgPath string
	var image, objects, model, backend, url string
	var modelW, modelH int

	flag.StringVar(&mode, "mode", "convert", "operation: convert|analyze|detect")
	flag.StringVar(&in, "in", "", "input directory (convert) or conversation file (analyze)")
	flag.StringVar(&out, "out", "out", "output directory")
	flag.StringVar(&cfgPath, "config", "", "config file path (JSON), defaults used when empty")

	flag.StringVar(&image, "image", "", "image path for detect mode")
	flag.StringVar(&objects, "objects", "", "comma-separated object names for detect mode")
	flag.StringVar(&model, "model", "", "model name (overrides config)")
	flag.StringVar(&backend, "backend", "", "backend: ollama or llamacpp (overrides config)")
	flag.StringVar(&url, "url", "", "server URL (defaults: ollama=http://localhost:11434, llamacpp=http://localhost:8080)")
	flag.IntVar(&modelW, "modelw", 0, "model input width for JSON responses (0 = image pixels)")
	flag.IntVar(&modelH, "modelh", 0, "model input height for JSON responses (0 = image pixels)")

	flag.Parse()

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.LoadFromFile(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
		if err := loaded.Validate(); err != nil {
			log.Fatalf("invalid config: %v", err)
		}
		cfg = loaded
	}

	switch mode {
	case "convert":
		runConvert(in, out)
	case "analyze":
		runAnalyze(in)
	case "detect":
		runDetect(cfg, image, objects, model, backend, url, out, modelW, modelH)
	default:
		log.Fatalf("unknown mode %q (use convert, analyze, or detect)", mode)
	}
}

func runConvert(in, out string) {
	if in == "" {
		log.Fatalf("usage: %s -mode convert -in input_dir -out output_dir", filepath.Base(os.Args[0]))
	}

	converter := autolabel.New()
	report, err := converter.ConvertDirectory(in, out)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("converted %d/%d files (%d skipped, %d failed)",
		report.Converted, report.Total, report.Skipped, report.Failed)
	if report.Converted == 0 {
		os.Exit(1)
	}
}

func runAnalyze(in string) {
	if in == "" {
		log.Fatalf("usage: %s -mode analyze -in conversation.json", filepath.Base(os.Args[0]))
	}

	analysis, err := autolabel.AnalyzeFile(in)
	if err != nil {
		log.Fatal(err)
	}

	js, _ := json.MarshalIndent(analysis, "", "  ")
	fmt.Println(string(js))
}

func runDetect(cfg *config.Config, image, objects, model, backend, url, out string, modelW, modelH int) {
	if image == "" || objects == "" {
		log.Fatalf("usage: %s -mode detect -image input.jpg -objects \"dog,cat\" [-backend ollama|llamacpp] [-url server_url]", filepath.Base(os.Args[0]))
	}

	if model == "" {
		model = cfg.Model.Name
	}
	if backend == "" {
		backend = cfg.Model.Backend
	}
	if url == "" {
		url = cfg.Model.URL
	}
	if modelW == 0 && modelH == 0 {
		modelW, modelH = cfg.Model.InputWidth, cfg.Model.InputHeight
	}

	var vlmClient client.VLMClient
	var err error

	switch backend {
	case "ollama":
		if url == "" {
			url = "http://localhost:11434"
		}
		vlmClient, err = ollama.NewClient(url)
		if err != nil {
			log.Fatalf("Failed to create Ollama client: %v", err)
		}
	case "llamacpp":
		if url == "" {
			url = "http://localhost:8080"
		}
		vlmClient, err = llamacpp.NewClient(url)
		if err != nil {
			log.Fatalf("Failed to create llama.cpp client: %v", err)
		}
	default:
		log.Fatalf("Unknown backend: %s (use 'ollama' or 'llamacpp')", backend)
	}

	img, err := utils.LoadImage(image)
	if err != nil {
		log.Fatal(err)
	}
	bounds := img.Bounds()
	imgW, imgH := bounds.Dx(), bounds.Dy()

	imgB64, err := utils.EncodeImageForModel(img, cfg.Model.SendFormat, cfg.Model.SendMaxDim, cfg.Model.SendQuality)
	if err != nil {
		log.Fatal(err)
	}

	detector := detection.NewDetector(vlmClient)
	shapes, description, err := detector.Detect(context.Background(), model, imgB64, objects, detection.Options{
		ImageWidth:          imgW,
		ImageHeight:         imgH,
		ModelInputWidth:     modelW,
		ModelInputHeight:    modelH,
		ConfidenceThreshold: cfg.Model.ConfidenceThreshold,
	})
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("detected %d shapes in %s", len(shapes), image)
	if len(shapes) == 0 && description != "" {
		log.Printf("model response: %s", description)
	}

	if err := utils.EnsureDir(out); err != nil {
		log.Fatal(err)
	}
	outPath := filepath.Join(out, utils.Stem(image)+"_detections.json")
	if err := writeShapes(outPath, image, imgW, imgH, shapes, description); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s", outPath)
}

// labelme-compatible shape output for detect mode
func writeShapes(path, imagePath string, width, height int, shapes []types.Shape, description string) error {
	type outShape struct {
		Label       string      `json:"label"`
		Points      [][]float64 `json:"points"`
		GroupID     *int        `json:"group_id"`
		ShapeType   string      `json:"shape_type"`
		Flags       struct{}    `json:"flags"`
		Description string      `json:"description"`
	}

	doc := struct {
		ImagePath   string     `json:"imagePath"`
		ImageWidth  int        `json:"imageWidth"`
		ImageHeight int        `json:"imageHeight"`
		Shapes      []outShape `json:"shapes"`
		Description string     `json:"description,omitempty"`
	}{
		ImagePath:   imagePath,
		ImageWidth:  width,
		ImageHeight: height,
		Shapes:      []outShape{},
		Description: description,
	}

	for _, s := range shapes {
		points := make([][]float64, len(s.Points))
		for i, p := range s.Points {
			points[i] = []float64{p.X, p.Y}
		}
		doc.Shapes = append(doc.Shapes, outShape{
			Label:       s.Label,
			Points:      points,
			ShapeType:   string(s.Type),
			Description: s.Description,
		})
	}

	js, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, js, 0644)
}
