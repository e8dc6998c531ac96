package types

import "fmt"

// ParseResult is the declaration model of one Java source file
type ParseResult struct {
	FilePath string
	Package  string // empty when the file has no package declaration
	Types    []TypeDecl
}

// TypeDeclKind is the flavour of a Java type declaration
type TypeDeclKind string

const (
	DeclClass     TypeDeclKind = "class"
	DeclInterface TypeDeclKind = "interface"
	DeclEnum      TypeDeclKind = "enum"
	DeclRecord    TypeDeclKind = "record"
)

// TypeDecl is a class, interface, enum or record declaration.
// Member types are listed separately with Outer.Inner names.
type TypeDecl struct {
	Name       string // Outer.Inner for member types
	SimpleName string
	Kind       TypeDeclKind
	Supertype  string // generic arguments stripped; empty if none
	TypeParams []string
	Fields     []Field
	Operations []Operation
	StartLine  int
	EndLine    int
}

// QualifiedName joins the package and the type name
func (td *TypeDecl) QualifiedName(pkg string) string {
	if pkg == "" {
		return td.Name
	}
	return pkg + "." + td.Name
}

// PublicOperationNames returns the names of public methods declared directly
// on the type, de-duplicated in declaration order. Constructors are excluded.
func (td *TypeDecl) PublicOperationNames() []string {
	seen := make(map[string]struct{}, len(td.Operations))
	names := make([]string, 0, len(td.Operations))
	for i := range td.Operations {
		op := &td.Operations[i]
		if op.Constructor || !op.Public {
			continue
		}
		if _, ok := seen[op.Name]; ok {
			continue
		}
		seen[op.Name] = struct{}{}
		names = append(names, op.Name)
	}
	return names
}

// Field is a field declaration without its initializer
type Field struct {
	Modifiers []string
	Type      string
	Names     []string
}

// Operation is a method or constructor declaration
type Operation struct {
	Name        string
	Constructor bool
	Modifiers   []string
	TypeParams  string // raw "<T extends Foo>" text, empty if none
	TypeVars    []string
	ReturnType  string // empty for constructors
	Params      []Param
	Body        string
	HasBody     bool
	EmptyBody   bool // body contains nothing but comments
	Public      bool
	StartLine   int
	EndLine     int
}

// Param is a formal parameter
type Param struct {
	Type     string
	Name     string
	Variadic bool
}

// ParseError describes a syntax error in a source file
type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	if pe.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", pe.File, pe.Line, pe.Column, pe.Message)
	}
	return fmt.Sprintf("%s: %s", pe.File, pe.Message)
}

// Unwrap lets callers match ErrSyntax with errors.Is
func (pe *ParseError) Unwrap() error {
	return ErrSyntax
}
