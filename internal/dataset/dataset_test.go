package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAcceptedHeaderAndHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed", "S1_Hype_processed.csv")
	res, err := WriteAccepted(path, []AcceptedRecord{
		{Text: "I love this trailer so much!", Time: "2016-07-10T12:00:00Z", Season: "S1"},
		{Text: "comma, inside \"quotes\"", Time: "2016-07-11T08:00:00Z", Season: "S1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Rows != 2 {
		t.Errorf("expected 2 rows, got %d", res.Rows)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if !strings.HasPrefix(string(data), "text,time,season\n") {
		t.Errorf("unexpected header: %q", strings.SplitN(string(data), "\n", 2)[0])
	}

	hash, err := HashFile(path)
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	if hash != res.SHA256 {
		t.Errorf("write hash %s != file hash %s", res.SHA256, hash)
	}
	if res.Bytes != int64(len(data)) {
		t.Errorf("expected %d bytes, got %d", len(data), res.Bytes)
	}

	back, err := ReadAccepted(path)
	if err != nil {
		t.Fatalf("reading accepted: %v", err)
	}
	if len(back) != 2 || back[1].Text != "comma, inside \"quotes\"" {
		t.Errorf("unexpected records: %+v", back)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.csv")
	if _, err := WriteSeasonStats(path, []SeasonStat{{Season: "S1", Label: "POSITIVE", Percentage: 50}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the artifact in dir, got %d entries", len(entries))
	}
}

func TestWriteRejectsRaggedRow(t *testing.T) {
	_, err := Write(filepath.Join(t.TempDir(), "x.csv"), AcceptedSchema, [][]string{{"only text"}})
	if err == nil {
		t.Error("expected error for short row")
	}
}

func TestReadMissing(t *testing.T) {
	_, err := ReadPredictions(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, ErrArtifactMissing) {
		t.Errorf("expected ErrArtifactMissing, got %v", err)
	}
}

func TestReadSchemaDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preds.csv")
	os.WriteFile(path, []byte("text,time,season\nhello,2020-01-01,S1\n"), 0o644)

	_, err := ReadPredictions(path)
	if !errors.Is(err, ErrSchemaDrift) {
		t.Errorf("expected ErrSchemaDrift, got %v", err)
	}
}

func TestReadRejectsUnexpectedColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acc.csv")
	os.WriteFile(path, []byte("text,time,season,extra\na,b,c,d\n"), 0o644)

	if _, err := ReadAccepted(path); !errors.Is(err, ErrSchemaDrift) {
		t.Errorf("expected ErrSchemaDrift for extra column, got %v", err)
	}
}

func TestReadLabeledToleratesHandEditedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labeled.csv")
	content := "\ufeff Text ;Ground_Truth_Label ;notes\n" +
		"great show;positive ;x\n" +
		";;\n" +
		"meh;\n"
	os.WriteFile(path, []byte(content), 0o644)

	rows, err := ReadLabeled(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 non-blank rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].Text != "great show" || rows[0].GroundTruthLabel != "positive " {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Text != "meh" || rows[1].GroundTruthLabel != "" {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
}

func TestSeasonStatsRoundTripFormatting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	stats := []SeasonStat{
		{Season: "S1", Label: "POSITIVE", Percentage: 62.5},
		{Season: "S1", Label: "NEGATIVE", Percentage: 37.5},
	}
	if _, err := WriteSeasonStats(path, stats); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "S1,POSITIVE,62.5\n") {
		t.Errorf("unexpected stats file: %q", data)
	}

	back, err := ReadSeasonStats(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(back) != 2 || back[1].Percentage != 37.5 {
		t.Errorf("unexpected stats: %+v", back)
	}
}

func TestLabelingSampleHasEmptyLabelColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.csv")
	if _, err := WriteLabelingSample(path, []string{"one two three"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "text,ground_truth_label\none two three,\n" {
		t.Errorf("unexpected sample file: %q", data)
	}
}

func TestStat(t *testing.T) {
	dir := t.TempDir()
	exists, _, err := Stat(filepath.Join(dir, "missing"))
	if err != nil || exists {
		t.Errorf("expected missing file, got exists=%v err=%v", exists, err)
	}
	path := filepath.Join(dir, "f")
	os.WriteFile(path, []byte("abc"), 0o644)
	exists, size, err := Stat(path)
	if err != nil || !exists || size != 3 {
		t.Errorf("expected 3-byte file, got exists=%v size=%d err=%v", exists, size, err)
	}
}
