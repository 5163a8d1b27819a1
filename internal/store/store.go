// Package store persists run artifacts: the chunk list as JSONL and
// the result manifest. It is the last line of defense for provenance —
// a chunk whose bbox was extracted upstream is never written without it.
package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackzampolin/leaflet/internal/home"
	"github.com/jackzampolin/leaflet/internal/types"
)

// Store writes run artifacts under the home directory.
type Store struct {
	home *home.Dir
}

// New creates a Store rooted at the given home directory.
func New(h *home.Dir) *Store {
	return &Store{home: h}
}

// WriteChunks writes one JSON row per chunk to the run's chunks.jsonl.
// Every row carries the full metadata blob; rows whose metadata would
// silently omit a bbox that exists on the chunk are rejected before
// anything is written.
func (s *Store) WriteChunks(runID string, chunks []types.Chunk) error {
	if err := s.home.EnsureRunDir(runID); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	rows := make([][]byte, 0, len(chunks))
	for _, chunk := range chunks {
		row, err := json.Marshal(chunk)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk %s: %w", chunk.ChunkID, err)
		}
		if err := verifyBBoxSurvives(chunk, row); err != nil {
			return err
		}
		rows = append(rows, row)
	}

	f, err := os.Create(s.home.ChunksPath(runID))
	if err != nil {
		return fmt.Errorf("failed to create chunks file: %w", err)
	}
	defer f.Close()

	for _, row := range rows {
		if _, err := f.Write(append(row, '\n')); err != nil {
			return fmt.Errorf("failed to write chunk row: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync chunks file: %w", err)
	}
	return nil
}

// WriteResult writes the run manifest.
func (s *Store) WriteResult(runID string, result *types.DocumentResult) error {
	if err := s.home.EnsureRunDir(runID); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := os.WriteFile(s.home.ResultPath(runID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write result manifest: %w", err)
	}
	return nil
}

// WriteCapture persists a page capture for inspection and reruns.
func (s *Store) WriteCapture(runID string, pageNum int, data []byte) error {
	if err := s.home.EnsureRunDir(runID); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	if err := os.WriteFile(s.home.CapturePath(runID, pageNum), data, 0o644); err != nil {
		return fmt.Errorf("failed to write capture for page %d: %w", pageNum, err)
	}
	return nil
}

// verifyBBoxSurvives checks that a chunk with a bbox serializes with a
// non-null bbox field. The guard exists because losing bboxes in the
// persistence hop is exactly the regression this subsystem must never
// reintroduce.
func verifyBBoxSurvives(chunk types.Chunk, row []byte) error {
	if chunk.Metadata.BBox == nil {
		return nil
	}
	var decoded struct {
		Metadata struct {
			BBox *types.BBox `json:"bbox"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(row, &decoded); err != nil {
		return fmt.Errorf("failed to verify chunk %s: %w", chunk.ChunkID, err)
	}
	if decoded.Metadata.BBox == nil {
		return fmt.Errorf("chunk %s would be persisted without its bbox", chunk.ChunkID)
	}
	return nil
}
