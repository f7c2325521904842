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


// Package index implements dense exact vector similarity search.
//
// The Index owns three parallel sequences: embedding vectors, document
// records, and metadata snapshots. Vectors are unit-L2-normalized on insert
// so inner product equals cosine similarity. A single read-write lock guards
// the sequences: Add is exclusive, Search and snapshot reads are shared.
//
// Documents are additionally keyed by their stable content-derived ID, so
// identity survives serialization and future index-structure swaps.
package index
