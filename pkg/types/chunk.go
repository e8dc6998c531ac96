package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ConstructorName is the operation name recorded for every constructor.
// It cannot collide with a Java identifier.
const ConstructorName = "<Constructor>"

// NoNamespace stands in for the package of a file without a package declaration.
const NoNamespace = "None"

// ChunkKind distinguishes methods from constructors
type ChunkKind string

const (
	KindMethod      ChunkKind = "method"
	KindConstructor ChunkKind = "constructor"
)

// ChunkID is the content-addressed identity of a chunk. It is a replace-key:
// the same namespace, type and signature always hash to the same value.
type ChunkID [32]byte

// ComputeChunkID derives the id from the three identity inputs
func ComputeChunkID(namespace, typeName, signature string) ChunkID {
	if namespace == "" {
		namespace = NoNamespace
	}
	return sha256.Sum256([]byte(namespace + "::" + typeName + "::" + signature))
}

// String returns the lowercase hex form used as the storage key
func (id ChunkID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the id was never computed
func (id ChunkID) IsZero() bool {
	return id == ChunkID{}
}

// MarshalText implements encoding.TextMarshaler
func (id ChunkID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *ChunkID) UnmarshalText(text []byte) error {
	parsed, err := ParseChunkID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseChunkID decodes a hex chunk id
func ParseChunkID(s string) (ChunkID, error) {
	var id ChunkID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidChunkID, err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidChunkID, len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// TypeContext is the structural context of the type enclosing an operation
type TypeContext struct {
	Namespace string
	TypeName  string
	Fields    []string
	Supertype string // empty when the type extends nothing
	Inherited []string
}

// NamespaceOrNone returns the namespace, or NoNamespace when absent
func (tc TypeContext) NamespaceOrNone() string {
	if tc.Namespace == "" {
		return NoNamespace
	}
	return tc.Namespace
}

// String renders the context in the form embedded into prompts and search text.
// The inherited list is always present, even when empty.
func (tc TypeContext) String() string {
	var b strings.Builder
	b.WriteString("Package: ")
	b.WriteString(tc.NamespaceOrNone())
	b.WriteString(", Class: ")
	b.WriteString(tc.TypeName)
	b.WriteString(", Fields: ")
	if len(tc.Fields) == 0 {
		b.WriteString("None")
	} else {
		b.WriteString(strings.Join(tc.Fields, "; "))
	}
	if tc.Supertype != "" {
		b.WriteString(", Extends: ")
		b.WriteString(tc.Supertype)
	}
	b.WriteString(", Inherited Methods: [")
	b.WriteString(strings.Join(tc.Inherited, ", "))
	b.WriteString("]")
	return b.String()
}

// Chunk is one extracted public method or constructor
type Chunk struct {
	ID              ChunkID
	OperationName   string
	Kind            ChunkKind
	Signature       string
	Body            string
	Truncated       bool // body exceeded the size guard and was cut
	OriginalSize    int  // body size in bytes before truncation
	Context         TypeContext
	DependencyTypes []string

	// Location
	FilePath  string
	StartLine int
	EndLine   int
}

// IsConstructor reports whether the chunk is a constructor
func (c *Chunk) IsConstructor() bool {
	return c.Kind == KindConstructor
}

// DisplayName is the human-facing operation label
func (c *Chunk) DisplayName() string {
	if c.IsConstructor() {
		return c.Context.TypeName + " constructor"
	}
	return c.OperationName
}

// ComputeID sets the chunk id from its namespace, type and signature
func (c *Chunk) ComputeID() {
	c.ID = ComputeChunkID(c.Context.Namespace, c.Context.TypeName, c.Signature)
}

// Validate checks that a chunk is well formed and its id matches its identity fields
func (c *Chunk) Validate() error {
	if c.OperationName == "" {
		return fmt.Errorf("operation: %w", ErrMissingName)
	}
	if c.Signature == "" {
		return ErrMissingSignature
	}
	if c.Kind != KindMethod && c.Kind != KindConstructor {
		return fmt.Errorf("invalid chunk kind %q", c.Kind)
	}
	if c.IsConstructor() != (c.OperationName == ConstructorName) {
		return errors.New("constructor kind and operation name disagree")
	}
	if c.ID != ComputeChunkID(c.Context.Namespace, c.Context.TypeName, c.Signature) {
		return ErrInvalidChunkID
	}
	return nil
}

// EnrichmentSource records where a chunk's summary came from
type EnrichmentSource string

const (
	SourceModel     EnrichmentSource = "model"
	SourceFallback  EnrichmentSource = "fallback"
	SourceOversized EnrichmentSource = "oversized"
)

// Enrichment is the summary and keywords attached to a chunk
type Enrichment struct {
	Summary  string
	Keywords []string
	Source   EnrichmentSource
}

// EnrichedChunk is a chunk plus its enrichment
type EnrichedChunk struct {
	Chunk
	Enrichment
}

// SearchText builds the text that is embedded and indexed for keyword search
func (e *EnrichedChunk) SearchText() string {
	return fmt.Sprintf("Summary: %s | Keywords: %s | Signature: %s | Context: %s",
		e.Summary, strings.Join(e.Keywords, ", "), e.Signature, e.Context.String())
}

// ChunkMetadata is the JSON document stored alongside each vector
type ChunkMetadata struct {
	Package          string           `json:"package"`
	ClassName        string           `json:"class_name"`
	Signature        string           `json:"signature"`
	MethodName       string           `json:"method_name"`
	Kind             ChunkKind        `json:"kind"`
	Dependencies     []string         `json:"dependencies"`
	InheritedMethods []string         `json:"inherited_methods"`
	FilePath         string           `json:"file_path"`
	Summary          string           `json:"summary"`
	Keywords         []string         `json:"keywords"`
	EnrichmentSource EnrichmentSource `json:"enrichment_source"`
	Truncated        bool             `json:"truncated"`
	StartLine        int              `json:"start_line"`
	EndLine          int              `json:"end_line"`
}

// Metadata projects the enriched chunk into its stored metadata
func (e *EnrichedChunk) Metadata() ChunkMetadata {
	return ChunkMetadata{
		Package:          e.Context.NamespaceOrNone(),
		ClassName:        e.Context.TypeName,
		Signature:        e.Signature,
		MethodName:       e.OperationName,
		Kind:             e.Kind,
		Dependencies:     nonNil(e.DependencyTypes),
		InheritedMethods: nonNil(e.Context.Inherited),
		FilePath:         e.FilePath,
		Summary:          e.Summary,
		Keywords:         nonNil(e.Keywords),
		EnrichmentSource: e.Source,
		Truncated:        e.Truncated,
		StartLine:        e.StartLine,
		EndLine:          e.EndLine,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
