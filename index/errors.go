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


package index

import "errors"

var (
	// ErrShapeMismatch indicates the parallel vector, document, and metadata
	// sequences passed to Add do not have equal lengths.
	ErrShapeMismatch = errors.New("mismatched sequence lengths")

	// ErrDimensionMismatch indicates a vector's dimension does not match the
	// index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrZeroVector indicates a vector with zero magnitude that cannot be
	// normalized.
	ErrZeroVector = errors.New("zero-magnitude vector")
)
