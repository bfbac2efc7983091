// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package editor

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/petar-djukic/go-porter/pkg/types"
)

// region is a located byte range of the content.
type region struct {
	start, end int
	stage      types.MatchStage
	similarity float64
}

func locate(content, search string, threshold float64) (region, bool) {
	if i := strings.Index(content, search); i >= 0 {
		return region{i, i + len(search), types.StageExact, 1}, true
	}
	if r, ok := locateSquashed(content, search); ok {
		return r, true
	}
	return locateSimilar(content, search, threshold)
}

// locateSquashed compares line windows with surrounding whitespace
// trimmed and inner runs collapsed. The region covers whole lines.
func locateSquashed(content, search string) (region, bool) {
	want := squashLines(search)
	if len(want) == 0 {
		return region{}, false
	}
	lines := strings.Split(content, "\n")
	offsets := lineOffsets(lines)
	for i := 0; i+len(want) <= len(lines); i++ {
		hit := true
		for j, w := range want {
			if squash(lines[i+j]) != w {
				hit = false
				break
			}
		}
		if hit {
			end := len(content)
			if i+len(want) < len(lines) {
				end = offsets[i+len(want)]
			}
			return region{offsets[i], end, types.StageWhitespaceNormalized, 1}, true
		}
	}
	return region{}, false
}

// locateSimilar picks the line window most similar to search.
func locateSimilar(content, search string, threshold float64) (region, bool) {
	if content == "" || search == "" {
		return region{}, false
	}
	lines := strings.Split(content, "\n")
	n := strings.Count(search, "\n") + 1
	if n > len(lines) {
		if sim := ratio(content, search); sim >= threshold {
			return region{0, len(content), types.StageFuzzy, sim}, true
		}
		return region{}, false
	}

	offsets := lineOffsets(lines)
	best, found := region{}, false
	for i := 0; i+n <= len(lines); i++ {
		window := strings.Join(lines[i:i+n], "\n")
		sim := ratio(window, search)
		if sim >= threshold && (!found || sim > best.similarity) {
			best = region{offsets[i], offsets[i] + len(window), types.StageFuzzy, sim}
			found = true
		}
	}
	return best, found
}

// closest returns the most similar line window regardless of threshold,
// with its 1-based line range.
func closest(content, search string) (text string, sim float64, from, to int) {
	if content == "" || search == "" {
		return "", 0, 0, 0
	}
	lines := strings.Split(content, "\n")
	n := min(strings.Count(search, "\n")+1, len(lines))
	at := -1
	for i := 0; i+n <= len(lines); i++ {
		if s := ratio(strings.Join(lines[i:i+n], "\n"), search); s > sim {
			sim, at = s, i
		}
	}
	if at < 0 {
		return "", 0, 0, 0
	}
	return strings.Join(lines[at:at+n], "\n"), sim, at + 1, at + n
}

// ratio is 1 minus the Levenshtein distance over the longer length.
func ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	dmp := diffmatchpatch.New()
	dist := dmp.DiffLevenshtein(dmp.DiffMain(a, b, false))
	return 1 - float64(dist)/float64(max(len(a), len(b)))
}

func squashLines(s string) []string {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	for i, l := range lines {
		lines[i] = squash(l)
	}
	return lines
}

// squash trims a line and collapses inner blank runs to one space.
func squash(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

func lineOffsets(lines []string) []int {
	offsets := make([]int, len(lines))
	at := 0
	for i, l := range lines {
		offsets[i] = at
		at += len(l) + 1
	}
	return offsets
}
