// Package wordcsv reads and writes the Question,Answer word list format.
//
// Parsing is lenient: rows missing either value are dropped and counted
// rather than failing the whole file. Only a file with no usable rows at all
// (or no Question/Answer header) is an error.
package wordcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Header names recognized in the first row. Matching is case-sensitive
// after trimming surrounding whitespace.
const (
	HeaderQuestion = "Question"
	HeaderAnswer   = "Answer"
)

var (
	// ErrEmptyFile is returned when the input has no header row.
	ErrEmptyFile = errors.New("empty file")

	// ErrMissingColumn is returned when the header lacks Question or Answer.
	ErrMissingColumn = errors.New("missing required column")

	// ErrNoRecords is returned when no data row carried both values.
	ErrNoRecords = errors.New("no valid rows: check the Question,Answer format")

	// ErrInvalidCSV wraps reader failures from encoding/csv.
	ErrInvalidCSV = errors.New("invalid csv")
)

// Record is one question/answer pair, already trimmed.
type Record struct {
	Question string
	Answer   string
}

// Result is the outcome of parsing a whole file.
type Result struct {
	Records []Record

	// Skipped counts non-empty data rows dropped for a missing or blank
	// Question or Answer. Completely blank lines are ignored by the CSV
	// reader and never counted; a row of only commas is counted.
	Skipped int
}

// Parse reads every row from r before returning. r must yield UTF-8.
func Parse(r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidCSV, err)
	}

	qIdx, aIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case HeaderQuestion:
			if qIdx < 0 {
				qIdx = i
			}
		case HeaderAnswer:
			if aIdx < 0 {
				aIdx = i
			}
		}
	}

	var missing []string
	if qIdx < 0 {
		missing = append(missing, HeaderQuestion)
	}
	if aIdx < 0 {
		missing = append(missing, HeaderAnswer)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	result := &Result{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}

		q := field(row, qIdx)
		a := field(row, aIdx)
		if q == "" || a == "" {
			result.Skipped++
			continue
		}
		result.Records = append(result.Records, Record{Question: q, Answer: a})
	}

	if len(result.Records) == 0 {
		return result, ErrNoRecords
	}
	return result, nil
}

func field(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// templateRows are the sample rows shipped in the downloadable template.
var templateRows = [][]string{
	{HeaderQuestion, HeaderAnswer},
	{"Apple", "사과"},
	{"Banana", "바나나"},
	{"Computer", "컴퓨터"},
}

// TemplateFileName is the suggested download name for WriteTemplate output.
const TemplateFileName = "word_template.csv"

// WriteTemplate writes a UTF-8 template with a leading byte-order mark so
// spreadsheet programs open it with the right encoding.
func WriteTemplate(w io.Writer) error {
	if _, err := io.WriteString(w, "\uFEFF"); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(templateRows); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}
