package chunker

import (
	"strings"

	"github.com/dshills/javacontext/pkg/types"
)

// NormalizeSignature renders an operation in canonical form:
//
//	[modifiers] [<T, U>] [return-type|<Constructor>] name(T1 p1, T2 p2)
//
// Generic arguments are kept in full. Constructors carry the marker in
// place of a return type followed by the type's simple name.
func NormalizeSignature(op *types.Operation) string {
	parts := make([]string, 0, len(op.Modifiers)+3)
	parts = append(parts, op.Modifiers...)
	if op.TypeParams != "" {
		parts = append(parts, normalizeTypeText(op.TypeParams))
	}
	if op.Constructor {
		parts = append(parts, types.ConstructorName)
	} else {
		parts = append(parts, normalizeTypeText(op.ReturnType))
	}

	params := make([]string, len(op.Params))
	for i, p := range op.Params {
		t := normalizeTypeText(p.Type)
		if p.Variadic {
			t += "..."
		}
		params[i] = t + " " + p.Name
	}

	return strings.Join(parts, " ") + " " + op.Name + "(" + strings.Join(params, ", ") + ")"
}

// normalizeTypeText collapses whitespace in a type expression so formatting
// differences in source never change a signature. No space is left after
// '<', '[' or '.', none before '<', '>', '[', ']', '.' or ',', and exactly
// one follows each comma.
func normalizeTypeText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case ' ':
			var prev byte
			if out := b.String(); len(out) > 0 {
				prev = out[len(out)-1]
			}
			next := s[i+1]
			if strings.IndexByte("<[.", prev) >= 0 || strings.IndexByte("<>[].,", next) >= 0 {
				continue
			}
			b.WriteByte(' ')
		case ',':
			b.WriteString(", ")
			for i+1 < len(s) && s[i+1] == ' ' {
				i++
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
