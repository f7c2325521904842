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


// Package ai defines the embedding provider boundary of the retrieval engine.
//
// The core never talks to an embedding service directly; it depends on the
// Embedder and Provider interfaces defined here. Two implementation
// sub-packages exist:
//
//   - ai/openai: production implementation over OpenAI-compatible APIs
//   - ai/mock: deterministic test doubles for unit testing
//
// Public constructors in implementation packages return the interface types
// to enforce abstraction; mock constructors return concrete types so tests
// can inject behavior and assert call counts.
package ai
