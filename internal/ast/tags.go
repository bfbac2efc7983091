// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// TagEntry is one key:"value" pair of a struct tag.
type TagEntry struct {
	Key   string
	Value string
}

func (e TagEntry) String() string {
	return e.Key + ":" + strconv.Quote(e.Value)
}

// ParseTag splits a struct tag literal (including its quotes) into entries
// using the conventional format reflect.StructTag understands. Parsing
// stops at the first malformed entry.
func ParseTag(literal string) []TagEntry {
	tag, err := strconv.Unquote(literal)
	if err != nil {
		return nil
	}
	var out []TagEntry
	for tag != "" {
		i := 0
		for i < len(tag) && tag[i] == ' ' {
			i++
		}
		tag = tag[i:]
		if tag == "" {
			break
		}

		i = 0
		for i < len(tag) && tag[i] > ' ' && tag[i] != ':' && tag[i] != '"' && tag[i] != 0x7f {
			i++
		}
		if i == 0 || i+1 >= len(tag) || tag[i] != ':' || tag[i+1] != '"' {
			break
		}
		key := tag[:i]
		tag = tag[i+1:]

		i = 1
		for i < len(tag) && tag[i] != '"' {
			if tag[i] == '\\' {
				i++
			}
			i++
		}
		if i >= len(tag) {
			break
		}
		value, err := strconv.Unquote(tag[:i+1])
		if err != nil {
			break
		}
		tag = tag[i+1:]
		out = append(out, TagEntry{Key: key, Value: value})
	}
	return out
}

// ParseTagEntry parses a single key:"value" entry.
func ParseTagEntry(s string) (TagEntry, error) {
	entries := ParseTag(strconv.Quote(s))
	if len(entries) != 1 {
		return TagEntry{}, fmt.Errorf("malformed tag entry %q", s)
	}
	return entries[0], nil
}

// RenderTag renders entries back into a tag literal, raw-quoted unless the
// content contains a backquote.
func RenderTag(entries []TagEntry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.String()
	}
	joined := strings.Join(parts, " ")
	if strings.Contains(joined, "`") {
		return strconv.Quote(joined)
	}
	return "`" + joined + "`"
}
