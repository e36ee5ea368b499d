// Package export writes analysis reports as YAML or JSON.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/rtscope/internal/stats"
)

// Supported formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// FormatFor picks the format from a file extension. Unknown extensions are YAML.
func FormatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Encode writes rep to w in the given format.
func Encode(w io.Writer, format string, rep stats.Report) error {
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode json report: %w", err)
		}
		b = append(b, '\n')
		_, err = w.Write(b)
		return err
	case FormatYAML:
		b, err := yaml.Marshal(rep)
		if err != nil {
			return fmt.Errorf("failed to encode yaml report: %w", err)
		}
		_, err = w.Write(b)
		return err
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteFile writes rep to path, or to stdout when path is "-".
func WriteFile(path string, rep stats.Report) error {
	if path == "-" {
		return Encode(os.Stdout, FormatYAML, rep)
	}
	var buf strings.Builder
	if err := Encode(&buf, FormatFor(path), rep); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
