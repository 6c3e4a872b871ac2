// Package dataset reads and writes the CSV artifacts exchanged between
// pipeline stages. Every artifact has a named, versioned Schema; writes are
// atomic and report a content hash, reads verify the header against the
// schema so a later stage notices column drift instead of reading blanks.
package dataset

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrArtifactMissing means the artifact file does not exist.
	ErrArtifactMissing = errors.New("artifact missing")
	// ErrSchemaDrift means the artifact header lacks a column the schema requires.
	ErrSchemaDrift = errors.New("artifact schema drift")
)

// Schema names an artifact layout. Columns are written in order; on read
// they must all be present, and extra columns are accepted only when
// AllowExtra is set.
type Schema struct {
	Name       string
	Version    int
	Columns    []string
	AllowExtra bool
}

func (s Schema) String() string {
	return fmt.Sprintf("%s/v%d", s.Name, s.Version)
}

var AcceptedSchema = Schema{
	Name:    "accepted",
	Version: 1,
	Columns: []string{"text", "time", "season"},
}

var PredictionsSchema = Schema{
	Name:    "predictions",
	Version: 1,
	Columns: []string{"text", "time", "season", "predicted_label"},
}

var SeasonStatsSchema = Schema{
	Name:    "season_stats",
	Version: 1,
	Columns: []string{"season", "label", "percentage"},
}

var LabelingSampleSchema = Schema{
	Name:    "labeling_sample",
	Version: 1,
	Columns: []string{"text", "ground_truth_label"},
}

// LabeledInputSchema is the hand-labeled sample; annotators may keep extra columns.
var LabeledInputSchema = Schema{
	Name:       "labeled_input",
	Version:    1,
	Columns:    []string{"text", "ground_truth_label"},
	AllowExtra: true,
}

var ValidationPredictionsSchema = Schema{
	Name:    "validation_predictions",
	Version: 1,
	Columns: []string{"text", "ground_truth_label", "predicted_label"},
}

// WriteResult describes a completed artifact write.
type WriteResult struct {
	Path   string
	Schema Schema
	Rows   int
	Bytes  int64
	SHA256 string
}

// Write atomically replaces path with a CSV holding the schema header and rows.
// Each row must have exactly len(schema.Columns) cells.
func Write(path string, schema Schema, rows [][]string) (WriteResult, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(schema.Columns); err != nil {
		return WriteResult{}, fmt.Errorf("writing header: %w", err)
	}
	for i, row := range rows {
		if len(row) != len(schema.Columns) {
			return WriteResult{}, fmt.Errorf("%s row %d: %d cells, want %d", schema, i, len(row), len(schema.Columns))
		}
		if err := w.Write(row); err != nil {
			return WriteResult{}, fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return WriteResult{}, fmt.Errorf("flushing csv: %w", err)
	}

	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return WriteResult{}, err
	}

	sum := sha256.Sum256(buf.Bytes())
	return WriteResult{
		Path:   path,
		Schema: schema,
		Rows:   len(rows),
		Bytes:  int64(buf.Len()),
		SHA256: hex.EncodeToString(sum[:]),
	}, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

// Read loads path and returns its rows projected onto schema.Columns order.
// Header names are matched after trimming whitespace, case-insensitively.
// Rows shorter than the header are padded with empty cells.
func Read(path string, schema Schema) ([][]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrArtifactMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file: %w", path, ErrSchemaDrift)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}

	index, err := mapColumns(header, schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if isBlankRecord(rec) {
			continue
		}
		row := make([]string, len(schema.Columns))
		for i, col := range index {
			if col < len(rec) {
				row[i] = rec[col]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func mapColumns(header []string, schema Schema) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := pos[key]; !dup {
			pos[key] = i
		}
	}

	index := make([]int, len(schema.Columns))
	var missing []string
	for i, col := range schema.Columns {
		p, ok := pos[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		index[i] = p
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s missing columns %v: %w", schema, missing, ErrSchemaDrift)
	}
	if !schema.AllowExtra && len(pos) > len(schema.Columns) {
		return nil, fmt.Errorf("%s has unexpected columns %v: %w", schema, header, ErrSchemaDrift)
	}
	return index, nil
}

// sniffDelimiter picks ';' when the header line has semicolons but no commas,
// which is how spreadsheet exports in some locales save CSV.
func sniffDelimiter(data []byte) rune {
	line, _, _ := bufio.NewReader(bytes.NewReader(data)).ReadLine()
	if bytes.IndexByte(line, ',') < 0 && bytes.IndexByte(line, ';') >= 0 {
		return ';'
	}
	return ','
}

func isBlankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Stat reports whether path exists and its size.
func Stat(path string) (exists bool, size int64, err error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	return true, info.Size(), nil
}

// HashFile returns the hex SHA-256 of the file contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
