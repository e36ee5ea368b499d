// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Input    InputConfig    `toml:"input"`
	Analysis AnalysisConfig `toml:"analysis"`
	Plot     PlotConfig     `toml:"plot"`
	Output   OutputConfig   `toml:"output"`
}

// InputConfig maps trial log discovery and column settings.
type InputConfig struct {
	Dir          *string  `toml:"dir"`
	Extensions   []string `toml:"extensions"`
	IDSeparator  *string  `toml:"id-separator"`
	CorrectCol   *string  `toml:"correct-column"`
	RTCol        *string  `toml:"rt-column"`
	OnsetCol     *string  `toml:"onset-column"`
	LevelCol     *string  `toml:"level-column"`
	CorrectValue *string  `toml:"correct-value"`
}

// AnalysisConfig maps cleaning, aggregation and fitting settings.
type AnalysisConfig struct {
	DelayMs      *float64 `toml:"delay-ms"`
	MaxRTMs      *float64 `toml:"max-rt-ms"`
	OutlierK     *float64 `toml:"outlier-k"`
	StdDev       *string  `toml:"stddev"`
	Latency      *string  `toml:"latency"`
	SortLevels   *bool    `toml:"sort-levels"`
	ZScore       *float64 `toml:"z-score"`
	Confidence   *float64 `toml:"confidence"`
	Significance *float64 `toml:"significance"`
	Left         []int    `toml:"left"`
	Right        []int    `toml:"right"`
	Jobs         *int     `toml:"jobs"`
	KeepGoing    *bool    `toml:"keep-going"`
}

// PlotConfig maps chart settings.
type PlotConfig struct {
	Title  *string  `toml:"title"`
	XLabel *string  `toml:"x-label"`
	YLabel *string  `toml:"y-label"`
	YMin   *float64 `toml:"y-min"`
	YMax   *float64 `toml:"y-max"`
	Width  *int     `toml:"width"`
	Height *int     `toml:"height"`
	PNG    *string  `toml:"png"`
}

// OutputConfig maps optional result sinks.
type OutputConfig struct {
	Export  *string `toml:"export"`
	Archive *bool   `toml:"archive"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
