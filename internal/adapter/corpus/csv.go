package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"qbank/internal/adapter/analyzer"
	"qbank/internal/domain"
)

// ErrMissingQuestionColumn is returned when a source has no Question column.
var ErrMissingQuestionColumn = errors.New("corpus: missing Question column")

// Column names of the tabular source, compared after key normalization.
const (
	colID         = "id"
	colQuestionID = "question id"
	colQuestion   = "question"
	colAnswer     = "answer"
	colExplain    = "explain"
	colDifficulty = "difficulty"
)

// LoadReport counts what happened to source rows.
type LoadReport struct {
	Rows                   int
	Kept                   int
	DroppedMissingQuestion int
	DroppedEmptyCleaned    int
	MalformedIDs           int
}

func (r *LoadReport) add(o LoadReport) {
	r.Rows += o.Rows
	r.Kept += o.Kept
	r.DroppedMissingQuestion += o.DroppedMissingQuestion
	r.DroppedEmptyCleaned += o.DroppedEmptyCleaned
	r.MalformedIDs += o.MalformedIDs
}

// ReadCSV converts a header-led CSV stream into question records. All
// missing-value handling happens here: empty cells become nil, integer columns
// accept integral float renderings such as "12.0", and rows whose question is
// missing or normalizes to "" are dropped.
func ReadCSV(r io.Reader, delimiter rune) ([]domain.QuestionRecord, LoadReport, error) {
	var report LoadReport

	reader := csv.NewReader(r)
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, report, ErrMissingQuestionColumn
	}
	if err != nil {
		return nil, report, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		cols[columnKey(name)] = i
	}
	if _, ok := cols[colQuestion]; !ok {
		return nil, report, ErrMissingQuestionColumn
	}

	var records []domain.QuestionRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, report, fmt.Errorf("failed to read row %d: %w", report.Rows+1, err)
		}
		report.Rows++

		cell := func(name string) *string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return nil
			}
			if strings.TrimSpace(row[i]) == "" {
				return nil
			}
			v := row[i]
			return &v
		}

		question := cell(colQuestion)
		if question == nil {
			report.DroppedMissingQuestion++
			continue
		}
		cleaned := analyzer.Normalize(*question)
		if cleaned == "" {
			report.DroppedEmptyCleaned++
			continue
		}

		rec := domain.QuestionRecord{
			Question:        *question,
			QuestionCleaned: cleaned,
			AnswerRaw:       cell(colAnswer),
			Explanation:     cell(colExplain),
		}
		if raw := cell(colID); raw != nil {
			rec.ID = parseInt(*raw)
			if rec.ID == nil {
				report.MalformedIDs++
			}
		} else {
			report.MalformedIDs++
		}
		if raw := cell(colQuestionID); raw != nil {
			rec.QuestionID = parseInt(*raw)
		}
		if raw := cell(colDifficulty); raw != nil {
			rec.Difficulty = parseInt(*raw)
		}
		for n := 1; n <= domain.NumOptions; n++ {
			rec.Options[n-1] = cell(fmt.Sprintf("option %d", n))
		}

		records = append(records, rec)
		report.Kept++
	}

	return records, report, nil
}

// columnKey folds header spelling variants ("Question_ID", " question id ")
// onto one key.
func columnKey(name string) string {
	name = strings.ToLower(strings.ReplaceAll(name, "_", " "))
	return strings.Join(strings.Fields(name), " ")
}

// parseInt parses integer cells, accepting integral floats. Non-numeric
// values yield nil.
func parseInt(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return &v
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	v := int64(f)
	return &v
}
