package telemetry

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

// Replay streams the rows of a CSV dataset at a fixed interval, looping
// back to the first row after the last.
type Replay struct {
	rows     []domain.Sample
	interval time.Duration
}

// LoadCSV reads a dataset from path.
func LoadCSV(path string, interval time.Duration) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadCSV(f, interval)
}

// ReadCSV parses a dataset with a header row. Empty or non-numeric cells read
// as 0.
func ReadCSV(r io.Reader, interval time.Duration) (*Replay, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = NormalizeKey(strings.TrimPrefix(h, "\ufeff"))
	}

	var rows []domain.Sample
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		sample := make(domain.Sample, len(keys))
		for i, key := range keys {
			var v float64
			if i < len(rec) {
				v, _ = strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			}
			if !finite(v) {
				v = 0
			}
			sample[key] = v
		}
		rows = append(rows, sample)
	}
	if len(rows) == 0 {
		return nil, errors.New("dataset has no rows")
	}
	return &Replay{rows: rows, interval: interval}, nil
}

// Len returns the number of rows in one pass.
func (r *Replay) Len() int { return len(r.rows) }

// Stream emits rows from the first one. Each call starts over.
func (r *Replay) Stream(ctx context.Context) <-chan domain.Sample {
	i := 0
	return tick(ctx, r.interval, func() domain.Sample {
		s := r.rows[i].Clone()
		i = (i + 1) % len(r.rows)
		return s
	})
}

// tick emits next() immediately, then once per interval, until ctx is done.
func tick(ctx context.Context, interval time.Duration, next func() domain.Sample) <-chan domain.Sample {
	ch := make(chan domain.Sample)
	go func() {
		defer close(ch)
		var ticker *time.Ticker
		if interval > 0 {
			ticker = time.NewTicker(interval)
			defer ticker.Stop()
		}
		for {
			select {
			case ch <- next():
			case <-ctx.Done():
				return
			}
			if ticker == nil {
				continue
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
