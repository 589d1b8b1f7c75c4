package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

// WriteError means an append failed (disk full, permissions) and the
// ledger row was not durably recorded.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("ledger append to %s failed: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Store is the append-only swap ledger: one CSV row per confirmed swap,
// header written once, rows never rewritten. The mutex serializes
// concurrent appends so rows from parallel swaps cannot interleave.
type Store struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

func NewStore(path string, logger *zap.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.Named("ledger"),
	}
}

// Append writes one record as a new row, creating the file with a header
// row on first use.
func (s *Store) Append(record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return &WriteError{Path: s.path, Err: err}
	}

	writer := csv.NewWriter(file)
	if stat.Size() == 0 {
		if err := writer.Write(Header()); err != nil {
			return &WriteError{Path: s.path, Err: err}
		}
	}
	if err := writer.Write(record.ToCSV()); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}

	s.logger.Info("Swap recorded",
		zap.String("signature", record.Signature),
		zap.String("src_mint", record.SrcMint),
		zap.String("dst_mint", record.DstMint),
		zap.String("src_delta_units", record.SrcDeltaUnits.String()),
		zap.String("dst_delta_units", record.DstDeltaUnits.String()))

	return nil
}

// LoadAll reads every row back into records. A missing or empty ledger is
// an empty history, not an error.
func (s *Store) LoadAll() ([]*Record, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("failed to open ledger %s: %w", s.path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", s.path, err)
	}
	if len(rows) == 0 {
		return []*Record{}, nil
	}

	header := rows[0]
	records := make([]*Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		record, err := recordFromRow(header, row)
		if err != nil {
			return nil, fmt.Errorf("ledger row %d: %w", i+2, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Path returns the ledger file location.
func (s *Store) Path() string {
	return s.path
}
