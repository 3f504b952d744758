package excel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/tutorcore/pkg/models"
	"github.com/xuri/excelize/v2"
)

type memoryCatalog struct {
	words  map[string]models.Word
	rules  map[string]models.GrammarRule
	failOn string
	nextID int64
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{words: map[string]models.Word{}, rules: map[string]models.GrammarRule{}}
}

func (m *memoryCatalog) ListWords(ctx context.Context) ([]models.Word, error) {
	out := make([]models.Word, 0, len(m.words))
	for _, w := range m.words {
		out = append(out, w)
	}
	return out, nil
}

func (m *memoryCatalog) ListRules(ctx context.Context) ([]models.GrammarRule, error) {
	out := make([]models.GrammarRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryCatalog) UpsertWord(ctx context.Context, word *models.Word) error {
	if word.Text == m.failOn {
		return errors.New("disk full")
	}
	if old, ok := m.words[word.Text]; ok {
		word.ID = old.ID
	} else {
		m.nextID++
		word.ID = m.nextID
	}
	m.words[word.Text] = *word
	return nil
}

func (m *memoryCatalog) UpsertRule(ctx context.Context, rule *models.GrammarRule) error {
	if old, ok := m.rules[rule.Title]; ok {
		rule.ID = old.ID
	} else {
		m.nextID++
		rule.ID = m.nextID
	}
	m.rules[rule.Title] = *rule
	return nil
}

func writeXLSX(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	const sheet = "Sheet1"
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName: %v", err)
		}
		if err := f.SetSheetRow(sheet, cellName, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestImportWordsFromExcel(t *testing.T) {
	path := writeXLSX(t, [][]interface{}{
		{"Word", "Translation", "Topic", "Level"},
		{"go (went, gone)", "идти", "Movement", "a1"},
		{"train", "поезд", "Transport", "A2"},
		{"", "пусто", "", ""},
		{"ship", "корабль", "", "Z9"},
		{"train", "поезд", "Travel", "A2"},
	})

	catalog := newMemoryCatalog()
	config := DefaultWordsConfig()
	config.FilePath = path
	config.DefaultGroup = "General"

	result, err := NewImporter(catalog).ImportWords(context.Background(), config)
	if err != nil {
		t.Fatalf("ImportWords: %v", err)
	}
	if result.TotalProcessed != 5 || result.Created != 2 || result.Updated != 1 || result.Skipped != 2 {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Errors) != 2 || !strings.Contains(result.Errors[1], "Z9") {
		t.Fatalf("errors = %v", result.Errors)
	}

	goWord, ok := catalog.words["go"]
	if !ok {
		t.Fatalf("words = %v, want cleaned \"go\"", catalog.words)
	}
	if goWord.CEFRLevel != "A1" || goWord.Topic != "Movement" {
		t.Errorf("go = %+v", goWord)
	}
	if catalog.words["train"].Topic != "Travel" {
		t.Errorf("train topic = %q, want the last row to win", catalog.words["train"].Topic)
	}
}

func TestImportWordsFromCSVWithTopicHeaders(t *testing.T) {
	path := writeCSV(t, "Word,Translation\n"+
		"Движение,,\n"+
		"run,бежать\n"+
		"walk (walked),идти пешком\n"+
		"\"Еда\",,\n"+
		"bread,хлеб,,B1\n")

	catalog := newMemoryCatalog()
	catalog.words["run"] = models.Word{ID: 40, Text: "run", Translation: "бежать"}
	config := DefaultWordsConfig()
	config.FilePath = path

	result, err := NewImporter(catalog).ImportWords(context.Background(), config)
	if err != nil {
		t.Fatalf("ImportWords: %v", err)
	}
	if result.TotalProcessed != 3 || result.Created != 2 || result.Updated != 1 {
		t.Fatalf("result = %+v", result)
	}

	tests := []struct {
		text, topic, level string
	}{
		{"run", "Движение", ""},
		{"walk", "Движение", ""},
		{"bread", "Еда", "B1"},
	}
	for _, tt := range tests {
		w, ok := catalog.words[tt.text]
		if !ok {
			t.Errorf("%s not imported", tt.text)
			continue
		}
		if w.Topic != tt.topic || w.CEFRLevel != tt.level {
			t.Errorf("%s = %+v, want topic %s level %q", tt.text, w, tt.topic, tt.level)
		}
	}
	if catalog.words["run"].ID != 40 {
		t.Errorf("run ID = %d, want existing 40", catalog.words["run"].ID)
	}
}

func TestImportWordsStoreErrorsAreReported(t *testing.T) {
	path := writeCSV(t, "Word,Translation\ncat,кот\ndog,собака\n")
	catalog := newMemoryCatalog()
	catalog.failOn = "cat"
	config := DefaultWordsConfig()
	config.FilePath = path

	result, err := NewImporter(catalog).ImportWords(context.Background(), config)
	if err != nil {
		t.Fatalf("ImportWords: %v", err)
	}
	if result.Created != 1 || len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "Row 2") {
		t.Fatalf("result = %+v", result)
	}
}

func TestImportRules(t *testing.T) {
	path := writeXLSX(t, [][]interface{}{
		{"Title", "Category", "Level"},
		{"Articles", "Determiners", "A1"},
		{"Present Perfect", "Tenses", "b1"},
		{"Third Conditional", "", "B2"},
	})
	catalog := newMemoryCatalog()
	config := DefaultRulesConfig()
	config.FilePath = path
	config.SheetName = "" // first sheet
	config.DefaultGroup = "Misc"

	result, err := NewImporter(catalog).ImportRules(context.Background(), config)
	if err != nil {
		t.Fatalf("ImportRules: %v", err)
	}
	if result.Created != 3 || result.Skipped != 0 {
		t.Fatalf("result = %+v", result)
	}
	if r := catalog.rules["Present Perfect"]; r.CEFRLevel != "B1" || r.Category != "Tenses" {
		t.Errorf("Present Perfect = %+v", r)
	}
	if r := catalog.rules["Third Conditional"]; r.Category != "Misc" {
		t.Errorf("Third Conditional category = %q", r.Category)
	}
}

func TestImportMissingFile(t *testing.T) {
	config := DefaultWordsConfig()
	config.FilePath = filepath.Join(t.TempDir(), "missing.xlsx")
	if _, err := NewImporter(newMemoryCatalog()).ImportWords(context.Background(), config); err == nil {
		t.Fatal("ImportWords() succeeded for a missing file")
	}
}

func TestColumnToIndex(t *testing.T) {
	for column, want := range map[string]int{"A": 0, "b": 1, "Z": 25, "AA": 26, "AB": 27} {
		if got := columnToIndex(column); got != want {
			t.Errorf("columnToIndex(%s) = %d, want %d", column, got, want)
		}
	}
}
