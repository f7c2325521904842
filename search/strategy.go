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


package search

import "fmt"

// Strategy selects how a query is matched against the corpus. It is a closed
// set so dispatch is exhaustive at compile time rather than string-driven.
type Strategy int

const (
	// StrategySemantic ranks purely by embedding cosine similarity.
	StrategySemantic Strategy = iota + 1
	// StrategyLexical ranks purely by term-frequency keyword matching.
	StrategyLexical
	// StrategyHybrid blends semantic and lexical scores linearly.
	StrategyHybrid
	// StrategyMMR re-ranks semantic candidates for diversity with maximal
	// marginal relevance.
	StrategyMMR
)

// String returns the canonical name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategySemantic:
		return "semantic"
	case StrategyLexical:
		return "lexical"
	case StrategyHybrid:
		return "hybrid"
	case StrategyMMR:
		return "mmr"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a strategy name to its Strategy value. "keyword" is
// accepted as an alias for lexical.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "semantic":
		return StrategySemantic, nil
	case "lexical", "keyword":
		return StrategyLexical, nil
	case "hybrid":
		return StrategyHybrid, nil
	case "mmr":
		return StrategyMMR, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}
