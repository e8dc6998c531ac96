// Package parser extracts declarations from Java source files using tree-sitter.
//
// The Java grammar is loaded once and parsers are pooled, so a single Parser
// value is safe for concurrent use.
//
// # Basic Usage
//
//	p := parser.New()
//	result, err := p.ParseFile("/path/to/Dog.java")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, td := range result.Types {
//	    fmt.Printf("%s %s extends %s\n", td.Kind, td.QualifiedName(result.Package), td.Supertype)
//	}
//
// # Extraction
//
// Each type declaration reports:
//   - Kind, simple name and Outer.Inner name for member types
//   - Supertype with generic arguments stripped
//   - Type parameter names
//   - Fields without initializers
//   - Methods and constructors with keyword modifiers, parameters and body
//
// Anonymous and local classes inside method bodies are not reported.
//
// # Errors
//
// A file whose syntax tree contains an error node is rejected with a
// *types.ParseError carrying the position of the first error.
//
// # Domain Tags
//
// DomainTag classifies a type name by convention (repository, service,
// entity, and so on) for use as a fallback keyword.
package parser
