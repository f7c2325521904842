// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/lexindex/core"
	"github.com/poiesic/lexindex/index"
)

// Artifact file names. All four are written and loaded together.
const (
	vectorsFile   = "vectors.mus"
	documentsFile = "documents.mus"
	metadataFile  = "metadata.json"
	matrixFile    = "embeddings.mat"
)

// Store persists index snapshots to a directory as four mutually
// consistent artifacts: the normalized vector structure, the document
// records, the metadata sequence, and the raw embedding matrix (kept
// redundantly for rebuild and debugging).
type Store struct {
	dir    string
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	s := &Store{
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "store")
	return s, nil
}

// Dir returns the directory the store persists into.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes a snapshot of the index. Each artifact is written to a
// temporary file and renamed into place, so a crash mid-save never leaves
// a half-written artifact visible.
func (s *Store) Save(ix *index.Index) error {
	if ix == nil {
		return fmt.Errorf("index cannot be nil")
	}

	vectors, docs, metas := ix.Snapshot()

	if err := s.writeAtomic(vectorsFile, encodeVectors(vectors)); err != nil {
		return fmt.Errorf("failed to save vectors: %w", err)
	}
	if err := s.writeAtomic(documentsFile, encodeDocuments(docs)); err != nil {
		return fmt.Errorf("failed to save documents: %w", err)
	}

	metaBytes, err := json.MarshalIndent(metas, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := s.writeAtomic(metadataFile, metaBytes); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	if err := s.writeAtomic(matrixFile, encodeMatrix(vectors)); err != nil {
		return fmt.Errorf("failed to save embedding matrix: %w", err)
	}

	s.logger.Info("saved index snapshot",
		"directory", s.dir,
		"vectors", len(vectors))
	return nil
}

// Load reads a previously saved snapshot and restores an index from it.
// Returns (nil, nil) when no prior state exists. A partial artifact set or
// any cross-artifact inconsistency yields ErrCorruptState rather than a
// silently truncated index.
func (s *Store) Load() (*index.Index, error) {
	present := 0
	files := []string{vectorsFile, documentsFile, metadataFile, matrixFile}
	for _, name := range files {
		if _, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
			present++
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}
	if present == 0 {
		return nil, nil
	}
	if present < len(files) {
		return nil, fmt.Errorf("%w: only %d of %d artifacts present in %s",
			ErrCorruptState, present, len(files), s.dir)
	}

	vectorBytes, err := os.ReadFile(filepath.Join(s.dir, vectorsFile))
	if err != nil {
		return nil, err
	}
	vectors, err := decodeVectors(vectorBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	docBytes, err := os.ReadFile(filepath.Join(s.dir, documentsFile))
	if err != nil {
		return nil, err
	}
	docs, err := decodeDocuments(docBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	metaBytes, err := os.ReadFile(filepath.Join(s.dir, metadataFile))
	if err != nil {
		return nil, err
	}
	var metas []core.Metadata
	if err := json.Unmarshal(metaBytes, &metas); err != nil {
		return nil, fmt.Errorf("%w: invalid metadata: %v", ErrCorruptState, err)
	}

	matrixBytes, err := os.ReadFile(filepath.Join(s.dir, matrixFile))
	if err != nil {
		return nil, err
	}
	matrix, err := decodeMatrix(matrixBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	if len(vectors) != len(docs) || len(docs) != len(metas) || len(matrix) != len(vectors) {
		return nil, fmt.Errorf("%w: %d vectors, %d documents, %d metadata entries, %d matrix rows",
			ErrCorruptState, len(vectors), len(docs), len(metas), len(matrix))
	}
	for i := range vectors {
		if len(matrix[i]) != len(vectors[i]) {
			return nil, fmt.Errorf("%w: matrix row %d has dimension %d, vector has %d",
				ErrCorruptState, i, len(matrix[i]), len(vectors[i]))
		}
	}

	ix, err := index.Restore(vectors, docs, metas)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	s.logger.Info("loaded index snapshot",
		"directory", s.dir,
		"vectors", ix.Len(),
		"dimension", ix.Dimension())
	return ix, nil
}

// writeAtomic writes data to a temporary file in the store directory and
// renames it over the target name.
func (s *Store) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func encodeVectors(vectors [][]float32) []byte {
	size := varint.Int.Size(len(vectors))
	for _, v := range vectors {
		size += core.VectorMUS.Size(v)
	}
	bs := make([]byte, size)
	n := varint.Int.Marshal(len(vectors), bs)
	for _, v := range vectors {
		n += core.VectorMUS.Marshal(v, bs[n:])
	}
	return bs
}

func decodeVectors(bs []byte) ([][]float32, error) {
	count, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("negative vector count %d", count)
	}
	vectors := make([][]float32, 0, count)
	for i := 0; i < count; i++ {
		v, m, err := core.VectorMUS.Unmarshal(bs[n:])
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		n += m
		vectors = append(vectors, v)
	}
	if n != len(bs) {
		return nil, fmt.Errorf("%d trailing bytes after vectors", len(bs)-n)
	}
	return vectors, nil
}

func encodeDocuments(docs []core.Document) []byte {
	size := varint.Int.Size(len(docs))
	for _, d := range docs {
		size += core.DocumentMUS.Size(d)
	}
	bs := make([]byte, size)
	n := varint.Int.Marshal(len(docs), bs)
	for _, d := range docs {
		n += core.DocumentMUS.Marshal(d, bs[n:])
	}
	return bs
}

func decodeDocuments(bs []byte) ([]core.Document, error) {
	count, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("negative document count %d", count)
	}
	docs := make([]core.Document, 0, count)
	for i := 0; i < count; i++ {
		d, m, err := core.DocumentMUS.Unmarshal(bs[n:])
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		n += m
		docs = append(docs, d)
	}
	if n != len(bs) {
		return nil, fmt.Errorf("%d trailing bytes after documents", len(bs)-n)
	}
	return docs, nil
}

// encodeMatrix lays the vectors out as a dense row-major float32 matrix
// with a fixed 8-byte header (rows, cols as little-endian uint32). The
// format is trivially readable from numerical tooling.
func encodeMatrix(vectors [][]float32) []byte {
	rows := len(vectors)
	cols := 0
	if rows > 0 {
		cols = len(vectors[0])
	}

	bs := make([]byte, 8+rows*cols*4)
	binary.LittleEndian.PutUint32(bs[0:4], uint32(rows))
	binary.LittleEndian.PutUint32(bs[4:8], uint32(cols))

	off := 8
	for _, v := range vectors {
		for _, x := range v {
			binary.LittleEndian.PutUint32(bs[off:off+4], math.Float32bits(x))
			off += 4
		}
	}
	return bs
}

func decodeMatrix(bs []byte) ([][]float32, error) {
	if len(bs) < 8 {
		return nil, fmt.Errorf("matrix header truncated: %d bytes", len(bs))
	}
	rows := int(binary.LittleEndian.Uint32(bs[0:4]))
	cols := int(binary.LittleEndian.Uint32(bs[4:8]))

	want := 8 + rows*cols*4
	if len(bs) != want {
		return nil, fmt.Errorf("matrix size mismatch: %d bytes for %dx%d", len(bs), rows, cols)
	}

	matrix := make([][]float32, rows)
	off := 8
	for i := range matrix {
		row := make([]float32, cols)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(bs[off : off+4]))
			off += 4
		}
		matrix[i] = row
	}
	return matrix, nil
}
