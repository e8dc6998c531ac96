// Package hierarchy builds the project-wide inheritance map used to resolve
// inherited operations.
//
// A Scanner walks a source tree once and records, for every class,
// interface, enum and record, its supertype reference and the public
// operations it declares directly. Nothing is resolved across files during
// the scan; Map.Inherited does that at lookup time.
//
//	m, stats, err := hierarchy.Scan(ctx, "/src/project")
//	inherited := m.Inherited("Animal", hierarchy.Fallback)
//
// The map is persisted as a JSON object keyed by qualified name:
//
//	{"com.example.Dog": {"parent_name": "Animal", "declared_operations": ["bark"], "simple_name": "Dog"}}
//
// Key order is scan order, and Load followed by Save reproduces the file
// byte for byte.
//
// # Known limitation
//
// With Fallback resolution an unqualified supertype reference matches the
// first type in scan order with that simple name, even when several packages
// declare one. Use Strict to require qualified supertype names.
package hierarchy
