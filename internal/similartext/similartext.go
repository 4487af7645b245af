// Copyright 2020-2021 Dolthub, Inc.
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

// Package similartext renders a ", maybe you mean X?" suggestion string
// for an unresolved identifier, used by the dialect parser (unknown
// keyword) and the dialect validator (unknown table) error paths.
package similartext

import (
	"strings"

	"github.com/intellisql/intellisql/internal/text_distance"
)

// maxDistance bounds how far a candidate may be from the query before it's
// considered too different to suggest; this keeps "willBeTooDifferent"
// style misses silent rather than offering a nonsense suggestion.
const maxDistance = 3

// Find returns a ", maybe you mean a or b?" suffix naming every name within
// maxDistance of query, or "" if none qualify or query is empty.
func Find(names []string, query string) string {
	if query == "" {
		return ""
	}
	return format(closeMatches(names, query))
}

// FindFromMap is Find over a map's keys.
func FindFromMap[V any](names map[string]V, query string) string {
	if query == "" {
		return ""
	}
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	return format(closeMatches(keys, query))
}

func closeMatches(names []string, query string) []string {
	type scored struct {
		name string
		dist int
	}
	var candidates []scored
	best := -1
	for _, n := range names {
		d := text_distance.Levenshtein(strings.ToLower(n), strings.ToLower(query))
		if best == -1 || d < best {
			best = d
		}
		candidates = append(candidates, scored{n, d})
	}
	if best == -1 || best > maxDistance {
		return nil
	}
	var out []string
	for _, c := range candidates {
		if c.dist == best {
			out = append(out, c.name)
		}
	}
	return out
}

func format(matches []string) string {
	if len(matches) == 0 {
		return ""
	}
	return ", maybe you mean " + strings.Join(matches, " or ") + "?"
}
