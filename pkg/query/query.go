// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

// Package query parses structured values out of URL query strings.
//
// The console's list screens accept comma-separated filter terms
// (?q=vietnamese,bakery); this package owns the splitting and trimming so
// the screen controllers stay free of string plumbing.
package query

import "strings"

// StringSlice parses a single comma-separated query value into a trimmed
// slice of non-empty terms. An empty value yields nil.
func StringSlice(val string) []string {
	if val == "" {
		return nil
	}
	var res []string
	for _, v := range strings.Split(val, ",") {
		clean := strings.TrimSpace(v)
		if clean != "" {
			res = append(res, clean)
		}
	}
	return res
}
