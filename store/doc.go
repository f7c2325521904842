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


// Package store persists index snapshots to disk.
//
// A snapshot consists of four artifacts written to one directory:
//
//   - vectors.mus    — normalized embedding vectors, MUS encoding
//   - documents.mus  — document records, MUS encoding
//   - metadata.json  — the metadata sequence, human-readable JSON
//   - embeddings.mat — raw float32 matrix, redundant copy for rebuild
//     and inspection from numerical tooling
//
// The artifacts are mutually consistent or the snapshot is rejected:
// Load returns ErrCorruptState when any artifact is missing or the
// sequences disagree on length or dimension. A directory with no
// artifacts at all is a cold start and loads as (nil, nil).
//
// Every artifact is written to a temporary file and renamed into place,
// so an interrupted Save never corrupts the previous snapshot.
package store
