package hierarchy

import (
	"strings"

	"github.com/dshills/javacontext/pkg/types"
)

// Resolution selects how supertype references are matched against the map
type Resolution int

const (
	// Fallback tries the exact qualified name, then the first record in scan
	// order whose simple name matches. When two packages declare the same
	// simple name the earlier one wins, which can attach the wrong ancestor.
	Fallback Resolution = iota

	// Strict accepts only an exact qualified-name match
	Strict
)

// String returns the mode name used in config and logs
func (r Resolution) String() string {
	if r == Strict {
		return "strict"
	}
	return "fallback"
}

// Map is the project-wide hierarchy map keyed by qualified type name.
// It is never mutated after construction and is safe for concurrent reads.
type Map struct {
	records map[string]*types.TypeRecord
	order   []string
}

// NewMap builds a map from records in scan order. A repeated qualified name
// keeps its first position and takes the data of its last occurrence.
func NewMap(records []types.TypeRecord) *Map {
	m := &Map{
		records: make(map[string]*types.TypeRecord, len(records)),
		order:   make([]string, 0, len(records)),
	}
	for _, r := range records {
		if r.QualifiedName == "" {
			continue
		}
		rec := r.Clone()
		if rec.SimpleName == "" {
			rec.SimpleName = simpleName(rec.QualifiedName)
		}
		if _, ok := m.records[rec.QualifiedName]; !ok {
			m.order = append(m.order, rec.QualifiedName)
		}
		m.records[rec.QualifiedName] = &rec
	}
	return m
}

// Empty returns a map with no records
func Empty() *Map {
	return NewMap(nil)
}

// Len returns the number of records
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Get returns a copy of the record with the exact qualified name
func (m *Map) Get(qualifiedName string) (types.TypeRecord, bool) {
	if m == nil {
		return types.TypeRecord{}, false
	}
	rec, ok := m.records[qualifiedName]
	if !ok {
		return types.TypeRecord{}, false
	}
	return rec.Clone(), true
}

// Records returns copies of all records in scan order
func (m *Map) Records() []types.TypeRecord {
	if m == nil {
		return nil
	}
	out := make([]types.TypeRecord, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.records[name].Clone())
	}
	return out
}

// Resolve looks up a supertype reference
func (m *Map) Resolve(ref string, mode Resolution) (types.TypeRecord, bool) {
	rec := m.lookup(ref, mode)
	if rec == nil {
		return types.TypeRecord{}, false
	}
	return rec.Clone(), true
}

func (m *Map) lookup(ref string, mode Resolution) *types.TypeRecord {
	if m == nil || ref == "" {
		return nil
	}
	if rec, ok := m.records[ref]; ok {
		return rec
	}
	if mode == Strict {
		return nil
	}
	suffix := "." + ref
	for _, name := range m.order {
		rec := m.records[name]
		if rec.SimpleName == ref || strings.HasSuffix(name, suffix) {
			return rec
		}
	}
	return nil
}

// Inherited returns the flattened public operations of parentRef and all of
// its ancestors, de-duplicated in first-seen order. The walk stops quietly at
// the first ancestor missing from the map and at any cycle.
func (m *Map) Inherited(parentRef string, mode Resolution) []string {
	out := []string{}
	seen := make(map[string]struct{})
	visited := make(map[string]struct{})

	ref := parentRef
	for ref != "" {
		rec := m.lookup(ref, mode)
		if rec == nil {
			break
		}
		if _, ok := visited[rec.QualifiedName]; ok {
			break
		}
		visited[rec.QualifiedName] = struct{}{}

		for _, op := range rec.DeclaredOperations {
			if _, ok := seen[op]; ok {
				continue
			}
			seen[op] = struct{}{}
			out = append(out, op)
		}
		ref, _ = rec.Parent()
	}
	return out
}

// Equal reports whether two maps hold the same records in the same order
func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	for i := 0; i < m.Len(); i++ {
		if m.order[i] != o.order[i] {
			return false
		}
		if !m.records[m.order[i]].Equal(*o.records[o.order[i]]) {
			return false
		}
	}
	return true
}

func simpleName(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}
