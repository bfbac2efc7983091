// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package plan

import "strings"

// RelativePath returns ref relative to the directory holding
// projectFile, trimming the common leading segments and climbing out of
// the rest with "..". Both paths may use either separator; the result
// uses forward slashes. When the paths share no segment (different
// roots or drives) it returns ref unchanged and false.
func RelativePath(projectFile, ref string) (string, bool) {
	dir := segments(projectFile)
	if len(dir) > 0 {
		dir = dir[:len(dir)-1]
	}
	target := segments(ref)

	common := 0
	for common < len(dir) && common < len(target) && dir[common] == target[common] {
		common++
	}
	if common == 0 {
		return ref, false
	}

	parts := make([]string, 0, len(dir)-common+len(target)-common)
	for range dir[common:] {
		parts = append(parts, "..")
	}
	parts = append(parts, target[common:]...)
	if len(parts) == 0 {
		return ".", true
	}
	return strings.Join(parts, "/"), true
}

func segments(p string) []string {
	p = strings.ReplaceAll(p, `\`, "/")
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}
