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


package core

import (
	"encoding/binary"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing so that identical content
// produces identical IDs across processes and restarts.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Well-known metadata keys. Source keys describe where a document came from;
// the embedding and retrieval keys are added by the engine at embed and
// query time respectively.
const (
	MetaSource             = "source"
	MetaCategory           = "category"
	MetaLanguage           = "language"
	MetaChunkIndex         = "chunk_index"
	MetaEmbeddingModel     = "embedding_model"
	MetaEmbeddingDimension = "embedding_dimension"
	MetaTextLength         = "text_length"
	MetaRelevanceScore     = "relevance_score"
	MetaRetrievalTimestamp = "retrieval_timestamp"
	MetaOriginalQuery      = "original_query"
)

// Metadata maps string keys to string values describing a document.
type Metadata map[string]string

// Clone returns a copy of the metadata. A nil map clones to an empty map so
// callers can annotate the copy without a nil check.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Document is an immutable-after-creation unit of retrievable text.
type Document struct {
	Id       ID
	Content  string
	Metadata Metadata
}

// DocumentID derives a stable identifier for a document. The hash covers the
// content plus the source and chunk index metadata when present, so two
// chunks with identical text from different positions get distinct IDs.
func DocumentID(content string, meta Metadata) ID {
	key := content
	if src, ok := meta[MetaSource]; ok {
		key += "\x00" + src
	}
	if chunk, ok := meta[MetaChunkIndex]; ok {
		key += "\x00" + chunk
	}
	return IDFromContent(key)
}

// SearchResult pairs a document with its relevance score for a query.
type SearchResult struct {
	Document Document
	Score    float32
}

// IndexStats summarizes the contents of a vector index.
type IndexStats struct {
	TotalVectors   int
	Dimension      int
	TotalDocuments int
	Categories     map[string]int
	Languages      map[string]int
}
