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


// Package cache provides a persistent embedding cache backed by BadgerDB.
//
// Embedding the same text twice is pure waste: the vector is a deterministic
// function of the model and the input. The cache keys entries by a BLAKE2b
// fingerprint of (model, text) and stores the vector in MUS encoding, so a
// corpus re-ingested after a restart costs no embedding calls.
//
// Concurrent requests for the same uncached text are collapsed into a single
// upstream call via singleflight. An optional TTL bounds cache growth for
// long-running deployments.
//
// # Usage
//
//	c, err := cache.Open("/var/lib/lexindex/cache")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	embedder, err := cache.NewEmbedder(provider.Embedder(), c, provider.EmbeddingModel())
package cache
