// Package trials loads per-participant trial logs.
package trials

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/verte-zerg/rtscope/internal/model"
)

const utf8BOM = "\ufeff"

// DefaultInput returns the column layout used by the VR scaling experiment logs.
func DefaultInput() model.InputConfig {
	return model.InputConfig{
		Extensions:   []string{".csv"},
		IDSeparator:  "-",
		CorrectCol:   "Correct",
		RTCol:        "ReactionTime",
		OnsetCol:     "ObjShowTime",
		LevelCol:     "Distance",
		CorrectValue: "True",
	}
}

// LoadDir loads every trial log in dir, ordered by file name.
func LoadDir(dir string, in model.InputConfig) ([]model.Participant, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{Kind: ErrInputDir, File: dir, Msg: err.Error()}
	}
	var participants []model.Participant
	for _, entry := range entries {
		if entry.IsDir() || !hasExtension(entry.Name(), in.Extensions) {
			continue
		}
		p, err := LoadFile(filepath.Join(dir, entry.Name()), in)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	if len(participants) == 0 {
		return nil, &LoadError{Kind: ErrNoInputFiles, File: dir, Msg: fmt.Sprintf("extensions %s", strings.Join(in.Extensions, ", "))}
	}
	return participants, nil
}

// LoadFile reads one trial log. The file is closed before LoadFile returns.
func LoadFile(path string, in model.InputConfig) (model.Participant, error) {
	name := filepath.Base(path)
	file, err := os.Open(path)
	if err != nil {
		return model.Participant{}, &LoadError{Kind: ErrInputDir, File: name, Msg: err.Error()}
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only trial log.
			_ = cerr
		}
	}()

	trials, err := ReadTrials(file, name, in)
	if err != nil {
		return model.Participant{}, err
	}
	return model.Participant{
		ID:     ParticipantID(name, in.IDSeparator),
		File:   name,
		Trials: trials,
	}, nil
}

// ReadTrials parses CSV trial rows from r. name is only used in errors.
func ReadTrials(r io.Reader, name string, in model.InputConfig) ([]model.Trial, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Kind: ErrMalformedCSV, File: name, Msg: "empty file"}
		}
		return nil, &LoadError{Kind: ErrMalformedCSV, File: name, Msg: err.Error()}
	}
	cols, err := resolveColumns(header, name, in)
	if err != nil {
		return nil, err
	}

	var trials []model.Trial
	row := 0
	for {
		rec, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &LoadError{Kind: ErrMalformedCSV, File: name, Row: row + 1, Msg: err.Error()}
		}
		row++
		if blankRecord(rec) {
			continue
		}
		trial, err := parseTrial(rec, row, cols, name, in)
		if err != nil {
			return nil, err
		}
		trials = append(trials, trial)
	}
	return trials, nil
}

// ParticipantID takes the file name segment before the first separator.
// Names without a separator use the name minus its extension.
func ParticipantID(name, sep string) string {
	if sep != "" {
		if idx := strings.Index(name, sep); idx >= 0 {
			return name[:idx]
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

type columnIndex struct {
	correct int
	rt      int
	onset   int
	level   int
}

func resolveColumns(header []string, name string, in model.InputConfig) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
		if _, seen := positions[h]; !seen {
			positions[h] = i
		}
	}
	lookup := func(col string) (int, error) {
		idx, ok := positions[col]
		if !ok {
			return 0, &LoadError{Kind: ErrMissingColumn, File: name, Column: col}
		}
		return idx, nil
	}
	var cols columnIndex
	var err error
	if cols.correct, err = lookup(in.CorrectCol); err != nil {
		return cols, err
	}
	if cols.rt, err = lookup(in.RTCol); err != nil {
		return cols, err
	}
	if cols.onset, err = lookup(in.OnsetCol); err != nil {
		return cols, err
	}
	if cols.level, err = lookup(in.LevelCol); err != nil {
		return cols, err
	}
	return cols, nil
}

func parseTrial(rec []string, row int, cols columnIndex, name string, in model.InputConfig) (model.Trial, error) {
	field := func(idx int) string {
		if idx >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[idx])
	}
	number := func(idx int, col string) (float64, error) {
		raw := field(idx)
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &LoadError{Kind: ErrNonNumeric, File: name, Row: row, Column: col, Msg: fmt.Sprintf("%q", raw)}
		}
		return v, nil
	}

	rt, err := number(cols.rt, in.RTCol)
	if err != nil {
		return model.Trial{}, err
	}
	onset, err := number(cols.onset, in.OnsetCol)
	if err != nil {
		return model.Trial{}, err
	}
	level, err := number(cols.level, in.LevelCol)
	if err != nil {
		return model.Trial{}, err
	}
	correctRaw := field(cols.correct)
	return model.Trial{
		Row:          row,
		Correct:      correctRaw == in.CorrectValue,
		CorrectRaw:   correctRaw,
		ReactionTime: rt,
		OnsetTime:    onset,
		Level:        level,
		LevelLabel:   field(cols.level),
	}, nil
}

func hasExtension(name string, exts []string) bool {
	for _, ext := range exts {
		if ext != "" && strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
