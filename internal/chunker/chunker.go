package chunker

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dshills/javacontext/internal/hierarchy"
	"github.com/dshills/javacontext/internal/parser"
	"github.com/dshills/javacontext/pkg/types"
)

// DefaultMaxBodyBytes is the body size above which a chunk is truncated and
// enriched with a fallback summary
const DefaultMaxBodyBytes = 50000

// Chunker turns Java files into method and constructor chunks
type Chunker struct {
	hierarchy    *hierarchy.Map
	parser       *parser.Parser
	maxBodyBytes int
	resolution   hierarchy.Resolution
}

// Option configures a Chunker
type Option func(*Chunker)

// WithMaxBodyBytes sets the body size guard. Values <= 0 are ignored.
func WithMaxBodyBytes(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithResolution sets how supertype references are matched
func WithResolution(r hierarchy.Resolution) Option {
	return func(c *Chunker) {
		c.resolution = r
	}
}

// WithParser shares a parser between chunkers
func WithParser(p *parser.Parser) Option {
	return func(c *Chunker) {
		if p != nil {
			c.parser = p
		}
	}
}

// New creates a chunker reading inheritance from m. A nil map yields empty
// inherited lists.
func New(m *hierarchy.Map, opts ...Option) *Chunker {
	c := &Chunker{
		hierarchy:    m,
		maxBodyBytes: DefaultMaxBodyBytes,
		resolution:   hierarchy.Fallback,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.parser == nil {
		c.parser = parser.New()
	}
	return c
}

// ParseFile extracts the chunks of one file using a default chunker
func ParseFile(path string, m *hierarchy.Map) ([]types.Chunk, error) {
	return New(m).ChunkFile(path)
}

// ChunkFile parses path and extracts its chunks in declaration order
func (c *Chunker) ChunkFile(path string) ([]types.Chunk, error) {
	result, err := c.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return c.Chunks(result), nil
}

// ChunkSource extracts the chunks of in-memory source attributed to path
func (c *Chunker) ChunkSource(path string, src []byte) ([]types.Chunk, error) {
	result, err := c.parser.ParseSource(path, src)
	if err != nil {
		return nil, err
	}
	return c.Chunks(result), nil
}

// Chunks extracts every public method and constructor with a non-empty body
func (c *Chunker) Chunks(result *types.ParseResult) []types.Chunk {
	typeParams := make(map[string][]string, len(result.Types))
	for i := range result.Types {
		typeParams[result.Types[i].Name] = result.Types[i].TypeParams
	}

	chunks := make([]types.Chunk, 0)
	for i := range result.Types {
		td := &result.Types[i]

		tc := types.TypeContext{
			Namespace: result.Package,
			TypeName:  td.Name,
			Fields:    renderFields(td.Fields),
			Supertype: td.Supertype,
			Inherited: c.hierarchy.Inherited(td.Supertype, c.resolution),
		}
		classVars := enclosingTypeVars(td.Name, typeParams)

		for j := range td.Operations {
			op := &td.Operations[j]
			if !op.Public || !op.HasBody || op.EmptyBody {
				continue
			}
			chunks = append(chunks, c.chunk(op, tc, classVars, result.FilePath))
		}
	}
	return chunks
}

func (c *Chunker) chunk(op *types.Operation, tc types.TypeContext, classVars []string, path string) types.Chunk {
	ch := types.Chunk{
		OperationName:   op.Name,
		Kind:            types.KindMethod,
		Signature:       NormalizeSignature(op),
		Context:         tc,
		DependencyTypes: DependencyTypes(op.Params, append(slices.Clone(classVars), op.TypeVars...)),
		FilePath:        path,
		StartLine:       op.StartLine,
		EndLine:         op.EndLine,
		OriginalSize:    len(op.Body),
	}
	if op.Constructor {
		ch.OperationName = types.ConstructorName
		ch.Kind = types.KindConstructor
	}
	ch.Body, ch.Truncated = truncateBody(op.Body, c.maxBodyBytes)
	ch.ComputeID()
	return ch
}

// enclosingTypeVars collects the type parameters of a type and every type
// it is nested in
func enclosingTypeVars(name string, typeParams map[string][]string) []string {
	var vars []string
	for {
		vars = append(vars, typeParams[name]...)
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			return vars
		}
		name = name[:i]
	}
}

func renderFields(fields []types.Field) []string {
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		parts := make([]string, 0, len(f.Modifiers)+2)
		parts = append(parts, f.Modifiers...)
		parts = append(parts, normalizeTypeText(f.Type), strings.Join(f.Names, ", "))
		out = append(out, strings.Join(parts, " "))
	}
	return out
}

// truncateBody cuts body to at most max bytes without splitting a rune
func truncateBody(body string, max int) (string, bool) {
	if max <= 0 || len(body) <= max {
		return body, false
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut], true
}
