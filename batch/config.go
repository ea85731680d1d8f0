package batch

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"isyntax2tiff/contracts"
)

// Config drives one batch run. A YAML file can override any field;
// unset fields keep their defaults.
type Config struct {
	FileWorkers       int      `yaml:"file_workers"`
	ConversionWorkers int      `yaml:"conversion_workers"`
	TileSize          int      `yaml:"tile_size"`
	BatchSize         int      `yaml:"batch_size"`
	FillColor         int      `yaml:"fill_color"`
	Compression       string   `yaml:"compression"`
	Quality           int      `yaml:"quality"`
	Pyramid512        bool     `yaml:"pyramid_512"`
	SkipExisting      bool     `yaml:"skip_existing"`
	Extensions        []string `yaml:"extensions"`
	Debug             bool     `yaml:"debug"`
}

func DefaultConfig() Config {
	opts := contracts.DefaultOptions()
	return Config{
		FileWorkers:       2,
		ConversionWorkers: opts.MaxWorkers,
		TileSize:          opts.TileSize,
		BatchSize:         opts.BatchSize,
		FillColor:         opts.FillColor,
		Compression:       opts.Compression,
		Quality:           opts.Quality,
		SkipExisting:      true,
		Extensions:        []string{".isyntax", ".i2syntax"},
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.FileWorkers <= 0 {
		return fmt.Errorf("file_workers must be positive, got %d", c.FileWorkers)
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("extensions must not be empty")
	}
	return c.Options().Validate()
}

// Options projects the per-file conversion settings.
func (c Config) Options() contracts.Options {
	return contracts.Options{
		TileSize:    c.TileSize,
		MaxWorkers:  c.ConversionWorkers,
		BatchSize:   c.BatchSize,
		FillColor:   c.FillColor,
		Compression: c.Compression,
		Quality:     c.Quality,
		Pyramid512:  c.Pyramid512,
		Debug:       c.Debug,
	}
}
