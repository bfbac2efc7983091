// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		name    string
		literal string
		want    []TagEntry
	}{
		{"raw", "`json:\"name\" yaml:\"name,omitempty\"`", []TagEntry{{"json", "name"}, {"yaml", "name,omitempty"}}},
		{"interpreted", `"json:\"id\""`, []TagEntry{{"json", "id"}}},
		{"escaped quote", "`desc:\"a \\\"b\\\"\"`", []TagEntry{{"desc", `a "b"`}}},
		{"malformed tail", "`json:\"x\" broken`", []TagEntry{{"json", "x"}}},
		{"not a literal", "json", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTag(tt.literal))
		})
	}
}

func TestRenderTag_RoundTrip(t *testing.T) {
	entries := []TagEntry{{"json", "name"}, {"bson", "name"}}
	lit := RenderTag(entries)
	assert.Equal(t, "`json:\"name\" bson:\"name\"`", lit)
	assert.Equal(t, entries, ParseTag(lit))
}

func TestParseTagEntry(t *testing.T) {
	e, err := ParseTagEntry(`db:"user_name"`)
	require.NoError(t, err)
	assert.Equal(t, TagEntry{Key: "db", Value: "user_name"}, e)

	_, err = ParseTagEntry(`db`)
	assert.Error(t, err)
}
