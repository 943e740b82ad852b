package utils

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"haBacktest/internal/domain"
)

// TradeBatchWriter is a ports.ChunkSink writing one CSV per chunk into a directory.
type TradeBatchWriter struct {
	dir    string
	prefix string

	mu    sync.Mutex
	files []string
}

// NewTradeBatchWriter writes chunks to <dir>/<prefix>_NNN.csv.
func NewTradeBatchWriter(dir, prefix string) *TradeBatchWriter {
	if prefix == "" {
		prefix = "trades_batch"
	}
	return &TradeBatchWriter{dir: dir, prefix: prefix}
}

// WriteTradeChunk writes one chunk file. Chunk numbers start at 1.
func (w *TradeBatchWriter) WriteTradeChunk(ctx context.Context, chunk int, trades []domain.Trade) error {
	name := filepath.Join(w.dir, fmt.Sprintf("%s_%03d.csv", w.prefix, chunk))
	if err := WriteTradesToCSV(trades, name); err != nil {
		return fmt.Errorf("write trade batch %d: %w", chunk, err)
	}
	w.mu.Lock()
	w.files = append(w.files, name)
	w.mu.Unlock()
	return nil
}

// Files returns the batch files written so far.
func (w *TradeBatchWriter) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.files...)
}
