// Package extraction carries configuration shared by the document
// extraction pipeline: oracle endpoint, swap heuristic and upload
// limits.
package extraction

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	"meterdesk/internal/extraction/swap"
	"meterdesk/internal/extraction/tabular"
)

const defaultMaxUploadBytes = 10 << 20

// Config defines extraction pipeline configuration.
type Config struct {
	OracleBaseURL  string               `yaml:"oracle_base_url"`
	OracleToken    string               `yaml:"-"`
	SwapHeuristic  swap.Heuristic       `yaml:"swap_heuristic"`
	MaxUploadBytes int64                `yaml:"max_upload_bytes"`
	DefaultLocale  tabular.NumberLocale `yaml:"default_locale"`
}

// LoadConfig loads extraction config from env, optionally overlaid by a
// YAML file pointed at by EXTRACTION_CONFIG.
func LoadConfig() (Config, error) {
	cfg := Config{
		OracleBaseURL:  os.Getenv("OCR_BASE_URL"),
		OracleToken:    os.Getenv("OCR_API_TOKEN"),
		SwapHeuristic:  swap.DefaultHeuristic(),
		MaxUploadBytes: defaultMaxUploadBytes,
		DefaultLocale:  tabular.LocaleEuropean,
	}

	if path := os.Getenv("EXTRACTION_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
		// The token never lives in the file.
		cfg.OracleToken = os.Getenv("OCR_API_TOKEN")
	}

	if cfg.SwapHeuristic.DropRatio <= 0 || cfg.SwapHeuristic.DropRatio >= 1 {
		return cfg, errors.New("extraction: drop ratio must be in (0, 1)")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	switch cfg.DefaultLocale {
	case tabular.LocaleEuropean, tabular.LocalePlain:
	default:
		cfg.DefaultLocale = tabular.LocaleEuropean
	}
	return cfg, nil
}
