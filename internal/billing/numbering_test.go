package billing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memorySequencer struct {
	mu   sync.Mutex
	seqs map[string]int
}

func newMemorySequencer() *memorySequencer {
	return &memorySequencer{seqs: make(map[string]int)}
}

func (s *memorySequencer) NextSequence(_ context.Context, prefix string, date time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := prefix + date.Format("060102")
	s.seqs[key]++
	return s.seqs[key], nil
}

func TestNumberFormat(t *testing.T) {
	date := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	n := FormatNumber(PrefixSale, date, 7)
	require.Equal(t, "SL240115007", n)
	require.Regexp(t, NumberPattern, n)
}

func TestNumberPrefixSelection(t *testing.T) {
	require.Equal(t, "SL", NumberPrefix(KindSale, nil))
	require.Equal(t, "SR", NumberPrefix(KindService, nil))
	require.Equal(t, "SI", NumberPrefix(KindInvoice, nil))
	require.Equal(t, "SC", NumberPrefix(KindInvoice, &Transaction{Kind: KindService, Status: StatusCompleted}))
	require.Equal(t, "SA", NumberPrefix(KindInvoice, &Transaction{Kind: KindSale, Status: StatusCompleted}))
	require.Equal(t, "RF", NumberPrefix(KindInvoice, &Transaction{Kind: KindSale, Status: StatusReturned}))
}

func TestSequencePerPrefixAndDay(t *testing.T) {
	seq := newMemorySequencer()
	ctx := context.Background()
	day1 := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	n1, err := NextNumber(ctx, seq, PrefixSale, day1)
	require.NoError(t, err)
	n2, err := NextNumber(ctx, seq, PrefixSale, day1)
	require.NoError(t, err)
	require.Equal(t, "SL240115001", n1)
	require.Equal(t, "SL240115002", n2)

	// Another prefix and another day each restart at 001.
	n3, err := NextNumber(ctx, seq, PrefixService, day1)
	require.NoError(t, err)
	require.Equal(t, "SR240115001", n3)
	n4, err := NextNumber(ctx, seq, PrefixSale, day2)
	require.NoError(t, err)
	require.Equal(t, "SL240116001", n4)
}

func TestConcurrentNumbersAreDistinct(t *testing.T) {
	seq := newMemorySequencer()
	ctx := context.Background()
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	const n = 64
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := NextNumber(ctx, seq, PrefixSale, date)
			if err != nil {
				results <- fmt.Sprintf("error: %v", err)
				return
			}
			results <- num
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool, n)
	for num := range results {
		require.Regexp(t, NumberPattern, num)
		require.False(t, seen[num], "duplicate number %s", num)
		seen[num] = true
	}
	require.Len(t, seen, n)
}
