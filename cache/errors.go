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


package cache

import "errors"

var (
	// ErrNilEmbedder indicates a nil inner embedder was passed to NewEmbedder.
	ErrNilEmbedder = errors.New("embedder cannot be nil")

	// ErrNilCache indicates a nil cache was passed to NewEmbedder.
	ErrNilCache = errors.New("cache cannot be nil")

	// ErrNilCompute indicates GetOrCompute was called without a compute function.
	ErrNilCompute = errors.New("compute function cannot be nil")

	// ErrBatchMismatch indicates the embedding service returned a batch whose
	// length does not match the request.
	ErrBatchMismatch = errors.New("embedding batch length mismatch")
)
