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


// Package ingestion turns document batches into index-ready vectors.
//
// The pipeline fans embedding work out over an ants worker pool, stamps
// each document with its embedding-time metadata (model, dimension, text
// length) and a stable content-derived ID, and returns the three parallel
// sequences the index consumes. Failures are per-document: a batch always
// makes whatever progress it can.
package ingestion
