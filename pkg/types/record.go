package types

import (
	"fmt"
	"slices"
)

// TypeRecord is one entry of the hierarchy map: a type, its supertype
// reference and the public operations it declares directly.
type TypeRecord struct {
	QualifiedName      string
	SimpleName         string
	ParentName         *string // raw, possibly unqualified; nil when none
	DeclaredOperations []string
}

// Parent returns the supertype reference and whether one exists
func (r *TypeRecord) Parent() (string, bool) {
	if r.ParentName == nil || *r.ParentName == "" {
		return "", false
	}
	return *r.ParentName, true
}

// Clone returns a deep copy so callers can never mutate shared records
func (r TypeRecord) Clone() TypeRecord {
	out := r
	if r.ParentName != nil {
		p := *r.ParentName
		out.ParentName = &p
	}
	out.DeclaredOperations = slices.Clone(r.DeclaredOperations)
	return out
}

// Equal reports whether two records carry identical data
func (r TypeRecord) Equal(o TypeRecord) bool {
	if r.QualifiedName != o.QualifiedName || r.SimpleName != o.SimpleName {
		return false
	}
	rp, rok := r.Parent()
	op, ook := o.Parent()
	if rok != ook || rp != op {
		return false
	}
	return slices.Equal(r.DeclaredOperations, o.DeclaredOperations)
}

// Validate checks that the record can be keyed
func (r *TypeRecord) Validate() error {
	if r.QualifiedName == "" {
		return fmt.Errorf("qualified %w", ErrMissingName)
	}
	if r.SimpleName == "" {
		return fmt.Errorf("simple %w", ErrMissingName)
	}
	return nil
}

// StringPtr is a small helper for optional string fields
func StringPtr(s string) *string {
	return &s
}
