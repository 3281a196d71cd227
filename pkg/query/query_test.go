// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nvbach/mercato/pkg/query"
)

/*
TestStringSlice covers the comma-splitting rules the list filters rely on.
*/
func TestStringSlice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"single_term", "vietnamese", []string{"vietnamese"}},
		{"multiple_terms", "vietnamese,bakery", []string{"vietnamese", "bakery"}},
		{"trims_whitespace", " vietnamese , bakery ", []string{"vietnamese", "bakery"}},
		{"drops_empty_segments", "vietnamese,,  ,bakery", []string{"vietnamese", "bakery"}},
		{"only_separators", ", ,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, query.StringSlice(tt.input))
		})
	}
}
