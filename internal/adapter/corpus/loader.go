package corpus

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"qbank/internal/domain"
	"qbank/internal/port"
)

// Loader reads every corpus file found below a root directory and
// concatenates the records in file path order.
type Loader struct {
	walker    port.FileWalker
	root      string
	delimiter rune
	logger    *zap.Logger

	report LoadReport
}

// NewLoader creates a Loader. A zero delimiter means comma.
func NewLoader(walker port.FileWalker, root string, delimiter rune, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		walker:    walker,
		root:      root,
		delimiter: delimiter,
		logger:    logger.With(zap.String("component", "corpus")),
	}
}

// Load implements port.CorpusSource.
func (l *Loader) Load(ctx context.Context) ([]domain.QuestionRecord, error) {
	files, err := l.walker.Walk(l.root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", l.root, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no corpus files found under %s: %w", l.root, os.ErrNotExist)
	}

	var (
		all   []domain.QuestionRecord
		total LoadReport
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, report, err := l.LoadFile(f.Path)
		if err != nil {
			return nil, err
		}
		l.logger.Info("corpus file loaded",
			zap.String("path", f.Path),
			zap.Int("rows", report.Rows),
			zap.Int("kept", report.Kept),
			zap.Int("dropped_missing", report.DroppedMissingQuestion),
			zap.Int("dropped_empty", report.DroppedEmptyCleaned),
		)
		if report.MalformedIDs > 0 {
			l.logger.Warn("rows without a numeric ID", zap.String("path", f.Path), zap.Int("count", report.MalformedIDs))
		}
		all = append(all, records...)
		total.add(report)
	}

	l.report = total
	return all, nil
}

// LoadFile reads a single CSV file.
func (l *Loader) LoadFile(path string) ([]domain.QuestionRecord, LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, report, err := ReadCSV(f, l.delimiter)
	if err != nil {
		return nil, report, fmt.Errorf("%s: %w", path, err)
	}
	return records, report, nil
}

// Report returns the totals of the last Load.
func (l *Loader) Report() LoadReport {
	return l.report
}
