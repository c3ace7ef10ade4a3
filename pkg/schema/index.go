// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package schema resolves REST path tokens to canonical managed-entity type names.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gertd/go-pluralize"

	"github.com/stacklok/vsphere-rest/pkg/vsphere"
)

// Index is an immutable snapshot of the remote type catalog plus the aliases
// derived from it. It is built once per session and is safe for concurrent use.
type Index struct {
	types   map[string]vsphere.TypeDefinition
	aliases map[string]string
}

// NewIndex builds an index over types. Every canonical name is reachable by
// its lower-cased form and the plural of that form. extra maps additional
// aliases (for example "vm") to canonical names; entries pointing at a type
// missing from types are dropped.
func NewIndex(types map[string]vsphere.TypeDefinition, extra map[string]string) *Index {
	idx := &Index{
		types:   make(map[string]vsphere.TypeDefinition, len(types)),
		aliases: make(map[string]string, len(types)*2+len(extra)*2),
	}
	plurals := pluralize.NewClient()
	for name, def := range types {
		idx.types[name] = def
		idx.addAlias(plurals, name, name)
	}
	for alias, name := range extra {
		if _, ok := idx.types[name]; !ok {
			continue
		}
		idx.addAlias(plurals, alias, name)
	}
	return idx
}

func (idx *Index) addAlias(plurals *pluralize.Client, alias, name string) {
	lower := strings.ToLower(alias)
	if lower == "" {
		return
	}
	if _, taken := idx.aliases[lower]; !taken {
		idx.aliases[lower] = name
	}
	plural := plurals.Plural(lower)
	if _, taken := idx.aliases[plural]; !taken {
		idx.aliases[plural] = name
	}
}

// Resolve maps token to a canonical type name. The token is checked verbatim
// against canonical names first, then case-insensitively against the aliases.
func (idx *Index) Resolve(token string) (string, error) {
	if _, ok := idx.types[token]; ok {
		return token, nil
	}
	if name, ok := idx.aliases[strings.ToLower(token)]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%w: unknown entity type %q", vsphere.ErrNotFound, token)
}

// Definition returns the type definition for a canonical name.
func (idx *Index) Definition(name string) (vsphere.TypeDefinition, bool) {
	def, ok := idx.types[name]
	return def, ok
}

// Names returns the canonical type names in sorted order.
func (idx *Index) Names() []string {
	names := make([]string, 0, len(idx.types))
	for name := range idx.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of canonical types.
func (idx *Index) Len() int {
	return len(idx.types)
}
