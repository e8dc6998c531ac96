package parser

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"

	"github.com/dshills/javacontext/pkg/types"
)

var (
	languageOnce sync.Once
	javaLanguage *tree_sitter.Language
	parserPool   sync.Pool
)

func language() *tree_sitter.Language {
	languageOnce.Do(func() {
		javaLanguage = tree_sitter.NewLanguage(tree_sitter_java.Language())
		parserPool.New = func() any {
			p := tree_sitter.NewParser()
			if err := p.SetLanguage(javaLanguage); err != nil {
				panic(fmt.Sprintf("tree-sitter java: %v", err))
			}
			return p
		}
	})
	return javaLanguage
}

// Parse parses Java source into a syntax tree. The caller must Close the tree.
func Parse(source []byte) (*tree_sitter.Tree, error) {
	language()
	p := parserPool.Get().(*tree_sitter.Parser)
	defer parserPool.Put(p)

	tree := p.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse returned nil tree")
	}
	return tree, nil
}

// Parser extracts Java declarations from source files
type Parser struct{}

// New creates a new parser instance
func New() *Parser {
	language()
	return &Parser{}
}

// ParseFile reads and parses a single Java file
func (p *Parser) ParseFile(filePath string) (*types.ParseResult, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return p.ParseSource(filePath, src)
}

// ParseSource parses Java source text attributed to filePath.
// A tree containing any ERROR or MISSING node yields a *types.ParseError.
func (p *Parser) ParseSource(filePath string, src []byte) (*types.ParseResult, error) {
	if len(bytes.TrimSpace(src)) == 0 {
		return &types.ParseResult{FilePath: filePath}, nil
	}

	tree, err := Parse(src)
	if err != nil {
		return nil, &types.ParseError{File: filePath, Message: err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(filePath, root)
	}

	e := &extractor{src: src}
	result := &types.ParseResult{FilePath: filePath}
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		switch child.Kind() {
		case "package_declaration":
			result.Package = e.packageName(child)
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			e.typeDecl(child, "", &result.Types)
		}
	}
	return result, nil
}

func syntaxError(filePath string, root *tree_sitter.Node) *types.ParseError {
	pe := &types.ParseError{File: filePath, Message: "invalid Java syntax"}
	var found bool
	Walk(root, func(n *tree_sitter.Node) bool {
		if found {
			return false
		}
		if n.IsError() || n.IsMissing() {
			pos := n.StartPosition()
			pe.Line = int(pos.Row) + 1
			pe.Column = int(pos.Column) + 1
			if n.IsMissing() {
				pe.Message = "missing " + n.Kind()
			} else {
				pe.Message = "unexpected input"
			}
			found = true
			return false
		}
		return n.HasError()
	})
	return pe
}

// Walk visits nodes depth-first. Returning false from fn skips the node's children.
func Walk(node *tree_sitter.Node, fn func(*tree_sitter.Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		Walk(node.Child(i), fn)
	}
}

// NodeText returns the source text spanned by node
func NodeText(node *tree_sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

type extractor struct {
	src []byte
}

func (e *extractor) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return NodeText(n, e.src)
}

func (e *extractor) packageName(n *tree_sitter.Node) string {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		switch child.Kind() {
		case "scoped_identifier", "identifier":
			return stripSpace(e.text(child))
		}
	}
	return ""
}

func declKind(kind string) types.TypeDeclKind {
	switch kind {
	case "interface_declaration":
		return types.DeclInterface
	case "enum_declaration":
		return types.DeclEnum
	case "record_declaration":
		return types.DeclRecord
	default:
		return types.DeclClass
	}
}

// typeDecl appends the declaration and then its member types, so an outer
// type always precedes its nested types.
func (e *extractor) typeDecl(n *tree_sitter.Node, outer string, out *[]types.TypeDecl) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	simple := e.text(nameNode)
	name := simple
	if outer != "" {
		name = outer + "." + simple
	}

	td := types.TypeDecl{
		Name:       name,
		SimpleName: simple,
		Kind:       declKind(n.Kind()),
		Supertype:  e.supertype(n),
		TypeParams: e.typeParameterNames(n.ChildByFieldName("type_parameters")),
		StartLine:  int(n.StartPosition().Row) + 1,
		EndLine:    int(n.EndPosition().Row) + 1,
	}
	interfaceMember := td.Kind == types.DeclInterface

	var components []types.Param
	if td.Kind == types.DeclRecord {
		components = e.params(n.ChildByFieldName("parameters"))
		td.Fields = append(td.Fields, recordComponents(components)...)
	}

	var nested []*tree_sitter.Node
	for _, m := range e.members(n.ChildByFieldName("body")) {
		switch m.Kind() {
		case "field_declaration", "constant_declaration":
			td.Fields = append(td.Fields, e.field(m))
		case "method_declaration":
			td.Operations = append(td.Operations, e.method(m, interfaceMember))
		case "constructor_declaration":
			td.Operations = append(td.Operations, e.constructor(m))
		case "compact_constructor_declaration":
			td.Operations = append(td.Operations, e.compactConstructor(m, components))
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			nested = append(nested, m)
		}
	}

	*out = append(*out, td)
	for _, m := range nested {
		e.typeDecl(m, name, out)
	}
}

// members lists the member declarations of a class, interface, enum or record body
func (e *extractor) members(body *tree_sitter.Node) []*tree_sitter.Node {
	if body == nil {
		return nil
	}
	var out []*tree_sitter.Node
	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		if child.Kind() == "enum_body_declarations" {
			for j := uint(0); j < child.NamedChildCount(); j++ {
				out = append(out, child.NamedChild(j))
			}
			continue
		}
		out = append(out, child)
	}
	return out
}

func (e *extractor) supertype(n *tree_sitter.Node) string {
	switch n.Kind() {
	case "class_declaration":
		if sc := n.ChildByFieldName("superclass"); sc != nil && sc.NamedChildCount() > 0 {
			return baseName(e.text(sc.NamedChild(sc.NamedChildCount() - 1)))
		}
		return e.firstListed(n.ChildByFieldName("interfaces"))
	case "record_declaration", "enum_declaration":
		return e.firstListed(n.ChildByFieldName("interfaces"))
	case "interface_declaration":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			if child := n.NamedChild(i); child.Kind() == "extends_interfaces" {
				return e.firstListed(child)
			}
		}
	}
	return ""
}

// firstListed returns the first type of a super_interfaces or extends_interfaces clause
func (e *extractor) firstListed(clause *tree_sitter.Node) string {
	if clause == nil {
		return ""
	}
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		list := clause.NamedChild(i)
		if list.Kind() == "type_list" && list.NamedChildCount() > 0 {
			return baseName(e.text(list.NamedChild(0)))
		}
	}
	return ""
}

func (e *extractor) typeParameterNames(tp *tree_sitter.Node) []string {
	if tp == nil {
		return nil
	}
	var names []string
	for i := uint(0); i < tp.NamedChildCount(); i++ {
		param := tp.NamedChild(i)
		if param.Kind() != "type_parameter" {
			continue
		}
		for j := uint(0); j < param.NamedChildCount(); j++ {
			if id := param.NamedChild(j); id.Kind() == "type_identifier" || id.Kind() == "identifier" {
				names = append(names, e.text(id))
				break
			}
		}
	}
	return names
}

// modifiers returns keyword modifiers in source order. Annotations are skipped.
func (e *extractor) modifiers(n *tree_sitter.Node) []string {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		mods := n.NamedChild(i)
		if mods.Kind() != "modifiers" {
			continue
		}
		var out []string
		for j := uint(0); j < mods.ChildCount(); j++ {
			m := mods.Child(j)
			if m.IsNamed() {
				continue
			}
			out = append(out, e.text(m))
		}
		return out
	}
	return nil
}

func (e *extractor) field(n *tree_sitter.Node) types.Field {
	f := types.Field{
		Modifiers: e.modifiers(n),
		Type:      e.text(n.ChildByFieldName("type")),
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		d := n.NamedChild(i)
		if d.Kind() != "variable_declarator" {
			continue
		}
		name := e.text(d.ChildByFieldName("name"))
		if dims := d.ChildByFieldName("dimensions"); dims != nil {
			name += stripSpace(e.text(dims))
		}
		f.Names = append(f.Names, name)
	}
	return f
}

// recordComponents renders record header components as the private final
// fields the compiler generates for them.
func recordComponents(params []types.Param) []types.Field {
	var out []types.Field
	for _, p := range params {
		typ := p.Type
		if p.Variadic {
			typ += "[]"
		}
		out = append(out, types.Field{
			Modifiers: []string{"private", "final"},
			Type:      typ,
			Names:     []string{p.Name},
		})
	}
	return out
}

func (e *extractor) method(n *tree_sitter.Node, interfaceMember bool) types.Operation {
	op := types.Operation{
		Name:       e.text(n.ChildByFieldName("name")),
		Modifiers:  e.modifiers(n),
		ReturnType: e.text(n.ChildByFieldName("type")),
		Params:     e.params(n.ChildByFieldName("parameters")),
		StartLine:  int(n.StartPosition().Row) + 1,
		EndLine:    int(n.EndPosition().Row) + 1,
	}
	if tp := n.ChildByFieldName("type_parameters"); tp != nil {
		op.TypeParams = e.text(tp)
		op.TypeVars = e.typeParameterNames(tp)
	}
	if dims := n.ChildByFieldName("dimensions"); dims != nil {
		op.ReturnType += stripSpace(e.text(dims))
	}
	e.body(n.ChildByFieldName("body"), &op)

	op.Public = hasModifier(op.Modifiers, "public") ||
		(interfaceMember && !hasModifier(op.Modifiers, "private"))
	return op
}

func (e *extractor) constructor(n *tree_sitter.Node) types.Operation {
	op := types.Operation{
		Name:        e.text(n.ChildByFieldName("name")),
		Constructor: true,
		Modifiers:   e.modifiers(n),
		Params:      e.params(n.ChildByFieldName("parameters")),
		StartLine:   int(n.StartPosition().Row) + 1,
		EndLine:     int(n.EndPosition().Row) + 1,
	}
	if tp := n.ChildByFieldName("type_parameters"); tp != nil {
		op.TypeParams = e.text(tp)
		op.TypeVars = e.typeParameterNames(tp)
	}
	e.body(n.ChildByFieldName("body"), &op)
	op.Public = hasModifier(op.Modifiers, "public")
	return op
}

// compactConstructor models a record's canonical constructor written without
// its parameter list. The parameters are the record components.
func (e *extractor) compactConstructor(n *tree_sitter.Node, components []types.Param) types.Operation {
	op := types.Operation{
		Name:        e.text(n.ChildByFieldName("name")),
		Constructor: true,
		Modifiers:   e.modifiers(n),
		Params:      slices.Clone(components),
		StartLine:   int(n.StartPosition().Row) + 1,
		EndLine:     int(n.EndPosition().Row) + 1,
	}
	e.body(n.ChildByFieldName("body"), &op)
	op.Public = hasModifier(op.Modifiers, "public")
	return op
}

func (e *extractor) params(list *tree_sitter.Node) []types.Param {
	if list == nil {
		return nil
	}
	var out []types.Param
	for i := uint(0); i < list.NamedChildCount(); i++ {
		p := list.NamedChild(i)
		switch p.Kind() {
		case "formal_parameter":
			typ := e.text(p.ChildByFieldName("type"))
			if dims := p.ChildByFieldName("dimensions"); dims != nil {
				typ += stripSpace(e.text(dims))
			}
			out = append(out, types.Param{Type: typ, Name: e.text(p.ChildByFieldName("name"))})
		case "spread_parameter":
			param := types.Param{Variadic: true}
			for j := uint(0); j < p.NamedChildCount(); j++ {
				c := p.NamedChild(j)
				switch c.Kind() {
				case "modifiers", "marker_annotation", "annotation":
				case "variable_declarator":
					param.Name = e.text(c.ChildByFieldName("name"))
				default:
					if param.Type == "" {
						param.Type = e.text(c)
					}
				}
			}
			out = append(out, param)
		}
	}
	return out
}

func (e *extractor) body(b *tree_sitter.Node, op *types.Operation) {
	if b == nil {
		return
	}
	op.HasBody = true
	op.Body = e.text(b)
	op.EmptyBody = true
	for i := uint(0); i < b.NamedChildCount(); i++ {
		switch b.NamedChild(i).Kind() {
		case "line_comment", "block_comment":
		default:
			op.EmptyBody = false
			return
		}
	}
}

func hasModifier(mods []string, want string) bool {
	for _, m := range mods {
		if m == want {
			return true
		}
	}
	return false
}

// baseName strips generic arguments from a type reference
func baseName(ref string) string {
	if i := strings.IndexByte(ref, '<'); i >= 0 {
		ref = ref[:i]
	}
	return stripSpace(ref)
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
