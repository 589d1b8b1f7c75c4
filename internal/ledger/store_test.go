package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "transactions.csv"), zap.NewNop())
}

func TestLoadAllMissingFile(t *testing.T) {
	store := tempStore(t)

	records, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAppendLoadRoundTrip(t *testing.T) {
	store := tempStore(t)

	draft := sampleDraft()
	// High-precision values must survive the trip unchanged.
	draft.Before.Sol = dec("1.123456789123456789")
	draft.After.Sol = dec("1.000000000000000001")
	draft.Timestamp = time.Date(2025, 6, 1, 12, 0, 0, 987654321, time.UTC)
	record, err := draft.Finalize()
	require.NoError(t, err)

	require.NoError(t, store.Append(record))

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, record.Signature, got.Signature)
	assert.Equal(t, record.SrcMint, got.SrcMint)
	assert.Equal(t, record.DstMint, got.DstMint)
	assert.True(t, record.Timestamp.Equal(got.Timestamp), "timestamp: %s vs %s", record.Timestamp, got.Timestamp)
	assert.True(t, record.PriceFetchedAt.Equal(got.PriceFetchedAt))
	assert.Equal(t, record.SlippageBps, got.SlippageBps)
	assert.Equal(t, record.FeeMint, got.FeeMint)

	wantRow := record.ToCSV()
	gotRow := got.ToCSV()
	require.Equal(t, len(wantRow), len(gotRow))
	for i := range wantRow {
		assert.Equal(t, wantRow[i], gotRow[i], "column %s", Header()[i])
	}
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	store := tempStore(t)

	draft := sampleDraft()
	record, err := draft.Finalize()
	require.NoError(t, err)
	require.NoError(t, store.Append(record))
	require.NoError(t, store.Append(record))

	file, err := os.Open(store.Path())
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header(), rows[0])
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	store := tempStore(t)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			draft := sampleDraft()
			draft.Signature = fmt.Sprintf("sig-%02d", n)
			record, err := draft.Finalize()
			if err != nil {
				t.Error(err)
				return
			}
			if err := store.Append(record); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	records, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, records, writers)

	seen := make(map[string]bool)
	for _, record := range records {
		assert.False(t, seen[record.Signature], "duplicate row %s", record.Signature)
		seen[record.Signature] = true
	}
}

func TestAppendToUnwritablePath(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing-dir", "transactions.csv"), zap.NewNop())

	draft := sampleDraft()
	record, err := draft.Finalize()
	require.NoError(t, err)

	err = store.Append(record)
	require.Error(t, err)
	var writeErr *WriteError
	assert.ErrorAs(t, err, &writeErr)
}
