// Package types provides shared type definitions for javacontext.
//
// # Core Types
//
// TypeRecord is one entry of the hierarchy map built before parsing:
//
//	rec := types.TypeRecord{
//	    QualifiedName:      "com.example.animals.Dog",
//	    SimpleName:         "Dog",
//	    ParentName:         types.StringPtr("Animal"),
//	    DeclaredOperations: []string{"bark"},
//	}
//
// Chunk is one public method or constructor with its structural context.
// Its ID is a pure function of namespace, type name and canonical signature:
//
//	id := types.ComputeChunkID("com.example.animals", "Dog", "public void bark()")
//
// Constructors carry ConstructorName as their operation name so they cannot
// be confused with a method named after the type.
//
// EnrichedChunk adds a summary and keywords. SearchText and Metadata produce
// the searchable text and the JSON document persisted with each vector.
//
// # Parse Model
//
// ParseResult, TypeDecl, Operation and Param describe the declarations of a
// single Java file as produced by internal/parser. Syntax errors surface as
// *ParseError, which matches ErrSyntax under errors.Is.
package types
