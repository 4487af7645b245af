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

// Package text_distance computes Levenshtein edit distance and the
// minimal-distance name in a candidate set, the primitive similartext
// builds its "maybe you mean" suggestions on top of.
package text_distance

// Levenshtein returns the edit distance between a and b: the minimum
// number of single-character insertions, deletions, or substitutions
// needed to turn a into b.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// FindSimilarName returns the name in names with the smallest edit
// distance to query, preferring the earliest in iteration order on a tie.
// It returns "" if names is empty.
func FindSimilarName(names []string, query string) string {
	var best string
	bestDist := -1
	for _, n := range names {
		d := Levenshtein(n, query)
		if bestDist == -1 || d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}

// FindSimilarNameFromMap is FindSimilarName over a map's keys.
func FindSimilarNameFromMap[V any](names map[string]V, query string) string {
	var best string
	bestDist := -1
	for n := range names {
		d := Levenshtein(n, query)
		if bestDist == -1 || d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}
