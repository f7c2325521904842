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


package filter

import (
	"slices"

	"github.com/poiesic/lexindex/core"
)

// Predicate maps a metadata key to the set of accepted values. A document
// matches only if every key is present in its metadata and the value is a
// member of the accepted set. Missing keys always fail the match: the policy
// is closed-world, not open.
type Predicate map[string][]string

// Eq builds a single-key equality predicate.
func Eq(key, value string) Predicate {
	return Predicate{key: {value}}
}

// With adds an accepted value for a key and returns the predicate for
// chaining.
func (p Predicate) With(key string, values ...string) Predicate {
	p[key] = append(p[key], values...)
	return p
}

// Matches reports whether the metadata satisfies every predicate key.
func (p Predicate) Matches(meta core.Metadata) bool {
	for key, accepted := range p {
		value, ok := meta[key]
		if !ok {
			return false
		}
		if !slices.Contains(accepted, value) {
			return false
		}
	}
	return true
}

// Merge combines two predicates into a new one. Keys in p take precedence
// over keys in other; this is how caller-supplied predicates override
// auto-detected ones.
func (p Predicate) Merge(other Predicate) Predicate {
	if len(other) == 0 && len(p) == 0 {
		return nil
	}
	merged := make(Predicate, len(p)+len(other))
	for key, values := range other {
		merged[key] = slices.Clone(values)
	}
	for key, values := range p {
		merged[key] = slices.Clone(values)
	}
	return merged
}
