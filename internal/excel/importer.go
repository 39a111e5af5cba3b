package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/lingoloop/internal/lexicon"
	"github.com/example/lingoloop/pkg/models"
)

// ReferenceStore persists imported reference words
type ReferenceStore interface {
	Upsert(ctx context.Context, words []models.ReferenceWord) error
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath           string // Path to the Excel or CSV file
	Language           string // Language the list belongs to
	LemmaColumn        string // Column with the word
	RankColumn         string // Column with the frequency rank; empty means row order
	PartOfSpeechColumn string // Column with the part of speech; optional
	SheetName          string // Name of the sheet to import; empty means the active sheet
	StartRow           int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		LemmaColumn:        "A",
		RankColumn:         "B",
		PartOfSpeechColumn: "C",
		StartRow:           2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Imported       int
	Skipped        int
	Errors         []string
}

// Importer loads frequency-ordered vocabulary lists into the reference store
type Importer struct {
	store      ReferenceStore
	normalizer lexicon.Normalizer
}

// NewImporter creates an importer
func NewImporter(store ReferenceStore, normalizer lexicon.Normalizer) *Importer {
	return &Importer{store: store, normalizer: normalizer}
}

type columns struct {
	lemma, rank, pos int // -1 when absent
}

// ImportWords imports words from an Excel or CSV file
func (im *Importer) ImportWords(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	if config.Language == "" {
		return nil, fmt.Errorf("import language is required")
	}
	if config.StartRow < 1 {
		config.StartRow = 1
	}

	cols, err := resolveColumns(config)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	// Check the file extension
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		rows, err = readCSV(config.FilePath)
	} else {
		rows, err = readExcel(config.FilePath, config.SheetName)
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	seen := make(map[string]struct{})
	var words []models.ReferenceWord

	for i, row := range rows {
		rowNum := i + 1
		// Skip header rows
		if rowNum < config.StartRow {
			continue
		}
		if blank(row) {
			continue
		}
		result.TotalProcessed++

		word, err := im.processRow(row, cols, config.Language, result.TotalProcessed)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		// Lists are ordered by frequency, so the first occurrence wins.
		if _, dup := seen[word.Lemma]; dup {
			result.Skipped++
			continue
		}
		seen[word.Lemma] = struct{}{}
		words = append(words, word)
	}

	if err := im.store.Upsert(ctx, words); err != nil {
		return nil, fmt.Errorf("failed to save reference words: %w", err)
	}
	result.Imported = len(words)
	return result, nil
}

// processRow turns one data row into a reference word. order is the row's
// position among data rows and doubles as its rank when none is given.
func (im *Importer) processRow(row []string, cols columns, language string, order int) (models.ReferenceWord, error) {
	lemma := im.normalizer.Canonicalize(cell(row, cols.lemma), language)
	if lemma == "" {
		return models.ReferenceWord{}, fmt.Errorf("word cannot be empty")
	}

	word := models.ReferenceWord{
		Language:      language,
		Lemma:         lemma,
		FrequencyRank: order,
	}

	if raw := strings.TrimSpace(cell(row, cols.rank)); raw != "" {
		rank, err := strconv.Atoi(raw)
		if err != nil || rank < 0 {
			return models.ReferenceWord{}, fmt.Errorf("invalid frequency rank %q", raw)
		}
		word.FrequencyRank = rank
	}

	if pos := strings.ToLower(strings.TrimSpace(cell(row, cols.pos))); pos != "" {
		word.PartOfSpeech = &pos
	}
	return word, nil
}

// readExcel returns all rows of a sheet
func readExcel(path, sheet string) ([][]string, error) {
	// Open Excel file
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

// readCSV returns all records of a CSV file
func readCSV(path string) ([][]string, error) {
	// Open CSV file
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func resolveColumns(config ImportConfig) (columns, error) {
	var cols columns
	var err error
	if config.LemmaColumn == "" {
		return cols, fmt.Errorf("lemma column is required")
	}
	if cols.lemma, err = columnToIndex(config.LemmaColumn); err != nil {
		return cols, err
	}
	if cols.rank, err = columnToIndex(config.RankColumn); err != nil {
		return cols, err
	}
	if cols.pos, err = columnToIndex(config.PartOfSpeechColumn); err != nil {
		return cols, err
	}
	return cols, nil
}

// columnToIndex converts an Excel column letter to a 0-based index; "" gives -1
func columnToIndex(column string) (int, error) {
	if column == "" {
		return -1, nil
	}
	n, err := excelize.ColumnNameToNumber(column)
	if err != nil {
		return 0, fmt.Errorf("invalid column %q: %w", column, err)
	}
	return n - 1, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
