package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/tutorcore/internal/cefr"
	"github.com/example/tutorcore/pkg/models"
	"github.com/xuri/excelize/v2"
)

// Catalog is where imported entries are stored
type Catalog interface {
	ListWords(ctx context.Context) ([]models.Word, error)
	ListRules(ctx context.Context) ([]models.GrammarRule, error)
	UpsertWord(ctx context.Context, word *models.Word) error
	UpsertRule(ctx context.Context, rule *models.GrammarRule) error
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath string // Path to the Excel or CSV file
	// Column letters. For words: text, translation, topic, level.
	// For grammar rules: title, category, level; translation is unused.
	TextColumn        string
	TranslationColumn string
	GroupColumn       string
	LevelColumn       string
	SheetName         string // Name of the sheet to import
	StartRow          int    // The row to start importing from (1-based index)
	DefaultGroup      string // Topic or category for rows without one
}

// DefaultWordsConfig returns the default import layout for words
func DefaultWordsConfig() ImportConfig {
	return ImportConfig{
		TextColumn:        "A",
		TranslationColumn: "B",
		GroupColumn:       "C",
		LevelColumn:       "D",
		SheetName:         "Sheet1",
		StartRow:          2, // By default, start from the second row (skip header)
	}
}

// DefaultRulesConfig returns the default import layout for grammar rules
func DefaultRulesConfig() ImportConfig {
	return ImportConfig{
		TextColumn:  "A",
		GroupColumn: "B",
		LevelColumn: "C",
		SheetName:   "Sheet1",
		StartRow:    2,
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

// Importer loads catalog files into the store
type Importer struct {
	catalog Catalog
}

// NewImporter creates a catalog importer
func NewImporter(catalog Catalog) *Importer {
	return &Importer{catalog: catalog}
}

type row struct {
	num                      int
	text, translation, group string
	level                    string
}

// ImportWords imports words from an Excel or CSV file
func (im *Importer) ImportWords(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	rows, err := readRows(config)
	if err != nil {
		return nil, err
	}
	existing, err := im.catalog.ListWords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get existing words: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, w := range existing {
		known[strings.ToLower(w.Text)] = true
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for _, r := range rows {
		result.TotalProcessed++
		word := &models.Word{
			Text:        cleanWord(r.text),
			Translation: cleanWord(r.translation),
			Topic:       r.group,
		}
		if word.Text == "" || word.Translation == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: word and translation are required", r.num))
			continue
		}
		level, err := normalizeLevel(r.level)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", r.num, err))
			continue
		}
		word.CEFRLevel = level

		if err := im.catalog.UpsertWord(ctx, word); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", r.num, err))
			continue
		}
		key := strings.ToLower(word.Text)
		if known[key] {
			result.Updated++
		} else {
			result.Created++
			known[key] = true
		}
	}
	return result, nil
}

// ImportRules imports grammar rules from an Excel or CSV file
func (im *Importer) ImportRules(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	config.TranslationColumn = ""
	rows, err := readRows(config)
	if err != nil {
		return nil, err
	}
	existing, err := im.catalog.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get existing rules: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, r := range existing {
		known[strings.ToLower(r.Title)] = true
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for _, r := range rows {
		result.TotalProcessed++
		rule := &models.GrammarRule{
			Title:    strings.TrimSpace(r.text),
			Category: r.group,
		}
		if rule.Title == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: title is required", r.num))
			continue
		}
		level, err := normalizeLevel(r.level)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", r.num, err))
			continue
		}
		rule.CEFRLevel = level

		if err := im.catalog.UpsertRule(ctx, rule); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", r.num, err))
			continue
		}
		key := strings.ToLower(rule.Title)
		if known[key] {
			result.Updated++
		} else {
			result.Created++
			known[key] = true
		}
	}
	return result, nil
}

func readRows(config ImportConfig) ([]row, error) {
	// Check the file extension
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		return readCSV(config)
	}
	return readExcel(config)
}

// readExcel reads rows from the configured sheet
func readExcel(config ImportConfig) ([]row, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := config.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	sheetRows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	var rows []row
	for i, cells := range sheetRows {
		// Skip header rows
		if i < config.StartRow-1 {
			continue
		}
		if isBlank(cells) {
			continue
		}
		r := extract(cells, config, i+1)
		if r.group == "" {
			r.group = config.DefaultGroup
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// readCSV reads rows from a CSV file. For word files, a row with only the first
// cell filled starts a new topic (e.g. "Движение,,") for the rows below it.
func readCSV(config ImportConfig) ([]row, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true    // Allow lazy quotes for custom CSV format

	var rows []row
	rowNum := 0
	currentGroup := config.DefaultGroup
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rowNum++

		// Skip header rows
		if rowNum < config.StartRow || isBlank(cells) {
			continue
		}

		if header := groupHeader(cells); header != "" && config.TranslationColumn != "" {
			currentGroup = header
			continue
		}

		r := extract(cells, config, rowNum)
		if r.group == "" {
			r.group = currentGroup
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func extract(cells []string, config ImportConfig, num int) row {
	return row{
		num:         num,
		text:        cell(cells, config.TextColumn),
		translation: cell(cells, config.TranslationColumn),
		group:       cell(cells, config.GroupColumn),
		level:       cell(cells, config.LevelColumn),
	}
}

func groupHeader(cells []string) string {
	if len(cells) == 0 || strings.TrimSpace(cells[0]) == "" {
		return ""
	}
	for _, c := range cells[1:] {
		if strings.TrimSpace(c) != "" {
			return ""
		}
	}
	return strings.Trim(strings.TrimSpace(cells[0]), "\"")
}

func cell(cells []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	return ""
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// normalizeLevel accepts "a1", " B2 " and the like; empty stays empty
func normalizeLevel(level string) (string, error) {
	level = strings.ToUpper(strings.TrimSpace(level))
	if level == "" {
		return "", nil
	}
	for _, l := range cefr.Levels {
		if l == level {
			return level, nil
		}
	}
	return "", fmt.Errorf("unknown CEFR level %q", level)
}

// cleanWord удаляет из слова дополнительную информацию в скобках
func cleanWord(word string) string {
	// Удаляем информацию в скобках "(went, gone)" из слова
	indexOpenParen := strings.Index(word, "(")
	if indexOpenParen > 0 {
		return strings.TrimSpace(word[:indexOpenParen])
	}
	return strings.TrimSpace(word)
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
