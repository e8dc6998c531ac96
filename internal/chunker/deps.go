package chunker

import (
	"strings"

	"github.com/dshills/javacontext/pkg/types"
)

// denylist holds type names that carry no instantiation information:
// primitives and their boxes, core library values, collection interfaces
// and their common implementations, and Optional.
var denylist = map[string]struct{}{
	"byte": {}, "short": {}, "int": {}, "long": {}, "float": {}, "double": {}, "boolean": {}, "char": {}, "void": {},
	"Byte": {}, "Short": {}, "Integer": {}, "Long": {}, "Float": {}, "Double": {}, "Boolean": {}, "Character": {}, "Void": {},
	"String": {}, "Object": {},
	"List": {}, "ArrayList": {}, "LinkedList": {},
	"Set": {}, "HashSet": {}, "TreeSet": {}, "LinkedHashSet": {},
	"Map": {}, "HashMap": {}, "TreeMap": {}, "LinkedHashMap": {},
	"Collection": {}, "Iterable": {}, "Iterator": {}, "Queue": {}, "Deque": {}, "Stream": {},
	"Optional": {},
}

// typeKeywords appear inside type expressions but never name a type
var typeKeywords = map[string]struct{}{
	"extends": {}, "super": {}, "final": {},
}

// IsBuiltinType reports whether name, or its last dotted segment, is denylisted
func IsBuiltinType(name string) bool {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	_, ok := denylist[name]
	return ok
}

// DependencyTypes returns the custom types used by the parameters, in order
// of first appearance. Generic arguments are searched recursively, arrays
// and varargs are stripped, and type variables are excluded.
func DependencyTypes(params []types.Param, typeVars []string) []string {
	vars := make(map[string]struct{}, len(typeVars))
	for _, v := range typeVars {
		vars[v] = struct{}{}
	}

	out := []string{}
	seen := make(map[string]struct{})
	for _, p := range params {
		for _, name := range baseTypeNames(p.Type) {
			if IsBuiltinType(name) {
				continue
			}
			if _, ok := vars[name]; ok {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// baseTypeNames lists every type name in a type expression, outermost
// first: "Map<String, List<Widget>>[]" yields Map, String, List, Widget.
// Annotations and wildcard keywords are skipped.
func baseTypeNames(t string) []string {
	var names []string
	for i := 0; i < len(t); {
		c := t[i]
		switch {
		case c == '@':
			i = skipAnnotation(t, i+1)
		case isIdentByte(c):
			start := i
			for i < len(t) && (isIdentByte(t[i]) || t[i] == '.') {
				i++
			}
			name := strings.Trim(t[start:i], ".")
			if _, ok := typeKeywords[name]; !ok && name != "" {
				names = append(names, name)
			}
		default:
			i++
		}
	}
	return names
}

// skipAnnotation advances past an annotation name and its argument list
func skipAnnotation(t string, i int) int {
	for i < len(t) && (isIdentByte(t[i]) || t[i] == '.') {
		i++
	}
	for i < len(t) && t[i] == ' ' {
		i++
	}
	if i < len(t) && t[i] == '(' {
		depth := 0
		for ; i < len(t); i++ {
			switch t[i] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					return i + 1
				}
			}
		}
	}
	return i
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c >= 0x80
}
