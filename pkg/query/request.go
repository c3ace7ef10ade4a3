// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package query

import "strings"

// DefaultProperty is fetched when the caller names no fields.
const DefaultProperty = "name"

// allFieldsToken is the fields value that requests every property.
const allFieldsToken = "all"

// Request is a framework-neutral description of an entity read.
type Request struct {
	// Type is the canonical entity type.
	Type string
	// ID restricts the read to one entity. Search parameters are ignored when set.
	ID string
	// Fields lists the properties to return. Empty means DefaultProperty
	// unless AllFields is set.
	Fields []string
	// AllFields requests every property of the type.
	AllFields bool
	// SearchField is the property matched against SearchValue.
	SearchField string
	// SearchValue is an unanchored regular expression.
	SearchValue string
}

// Searching reports whether the request triggers the two-phase search.
func (r Request) Searching() bool {
	return r.ID == "" && r.SearchField != "" && r.SearchValue != ""
}

// Properties returns the property set for the final fetch. An empty slice
// means all properties.
func (r Request) Properties() []string {
	if r.AllFields {
		return []string{}
	}
	if len(r.Fields) == 0 {
		return []string{DefaultProperty}
	}
	out := make([]string, len(r.Fields))
	copy(out, r.Fields)
	return out
}

// ParseFields interprets the values of the fields query parameter. Values
// may repeat and may each be comma separated. Only a lone "all" requests
// every property; inside a list it is an ordinary property name.
func ParseFields(values []string) (fields []string, all bool) {
	seen := make(map[string]struct{})
	for _, v := range values {
		for _, f := range strings.Split(v, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			fields = append(fields, f)
		}
	}
	if len(fields) == 1 && fields[0] == allFieldsToken {
		return nil, true
	}
	return fields, false
}
