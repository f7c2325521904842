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
	"strings"

	"github.com/poiesic/lexindex/core"
)

// Document categories recognized by auto-detection. The keyword tables carry
// both English and Bengali spellings since the corpus contains both scripts.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"constitution", []string{"constitution", "সংবিধান"}},
	{"acts", []string{"act", "আইন"}},
	{"ordinances", []string{"ordinance", "অধ্যাদেশ"}},
	{"court_judgments", []string{"judgment", "রায়"}},
}

// Detect infers metadata predicates from a raw query string: a document
// category from keyword presence and a language from the script-character
// ratio. Callers merge the result with explicit predicates, explicit keys
// winning on conflict.
func Detect(query string) Predicate {
	pred := Predicate{}
	lower := strings.ToLower(query)

	for _, entry := range categoryKeywords {
		for _, word := range entry.words {
			if strings.Contains(lower, word) {
				pred[core.MetaCategory] = []string{entry.category}
				break
			}
		}
		if _, ok := pred[core.MetaCategory]; ok {
			break
		}
	}

	if lang := detectLanguage(query); lang != "" {
		pred[core.MetaLanguage] = []string{lang}
	}

	if len(pred) == 0 {
		return nil
	}
	return pred
}

// detectLanguage classifies a query as Bengali or English when one script
// clearly dominates (more than twice the other), and stays neutral otherwise.
func detectLanguage(query string) string {
	var bengali, english int
	for _, r := range query {
		switch {
		case r >= 0x0980 && r <= 0x09FF:
			bengali++
		case r < 128 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			english++
		}
	}

	switch {
	case bengali > english*2:
		return "bn"
	case english > bengali*2:
		return "en"
	default:
		return ""
	}
}
