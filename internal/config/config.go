package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	Convert ConvertConfig `json:"convert"`
	Model   ModelConfig   `json:"model"`
	Export  ExportConfig  `json:"export"`
}

// ConvertConfig holds configuration for directory batch conversion
type ConvertConfig struct {
	ExportSuffix string `json:"export_suffix"`
}

// ModelConfig holds configuration for the VLM inference backend
type ModelConfig struct {
	Backend             string  `json:"backend"`
	URL                 string  `json:"url"`
	Name                string  `json:"name"`
	SendFormat          string  `json:"send_format"`
	SendMaxDim          int     `json:"send_max_dim"`
	SendQuality         int     `json:"send_quality"`
	InputWidth          int     `json:"input_width"`
	InputHeight         int     `json:"input_height"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

// ExportConfig holds configuration for conversation export
type ExportConfig struct {
	IncludeTextConversations bool `json:"include_text_conversations"`
	SplitTaskFiles           bool `json:"split_task_files"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Convert: ConvertConfig{
			ExportSuffix: "_sharegpt",
		},
		Model: ModelConfig{
			Backend:             "ollama",
			URL:                 "",
			Name:                "qwen2.5vl",
			SendFormat:          "jpg",
			SendMaxDim:          1536,
			SendQuality:         85,
			InputWidth:          0,
			InputHeight:         0,
			ConfidenceThreshold: 0.3,
		},
		Export: ExportConfig{
			IncludeTextConversations: true,
			SplitTaskFiles:           false,
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Convert.ExportSuffix == "" {
		return fmt.Errorf("convert.export_suffix cannot be empty")
	}

	if c.Model.Backend != "ollama" && c.Model.Backend != "llamacpp" {
		return fmt.Errorf("model.backend must be 'ollama' or 'llamacpp'")
	}

	if c.Model.SendQuality < 1 || c.Model.SendQuality > 100 {
		return fmt.Errorf("model.send_quality must be between 1 and 100")
	}

	if c.Model.SendMaxDim < 0 {
		return fmt.Errorf("model.send_max_dim cannot be negative")
	}

	if c.Model.ConfidenceThreshold < 0 || c.Model.ConfidenceThreshold > 1 {
		return fmt.Errorf("model.confidence_threshold must be between 0 and 1")
	}

	if (c.Model.InputWidth == 0) != (c.Model.InputHeight == 0) {
		return fmt.Errorf("model.input_width and model.input_height must be set together")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "autolabel", "config.json")
}
