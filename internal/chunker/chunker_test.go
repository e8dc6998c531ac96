package chunker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/javacontext/internal/hierarchy"
	"github.com/dshills/javacontext/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const overloadSource = `package com.example;

public class OverloadTest {
    public void f() { log(); }
    public void f(int x) { log(x); }
    public void f(String s) { log(s); }
}
`

func TestChunkSource_Overloads(t *testing.T) {
	c := New(nil)
	chunks, err := c.ChunkSource("OverloadTest.java", []byte(overloadSource))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	ids := map[types.ChunkID]bool{}
	sigs := map[string]bool{}
	for _, ch := range chunks {
		require.NoError(t, ch.Validate())
		assert.Equal(t, "f", ch.OperationName)
		ids[ch.ID] = true
		sigs[ch.Signature] = true
	}
	assert.Len(t, ids, 3)
	assert.Len(t, sigs, 3)

	assert.Equal(t, "public void f()", chunks[0].Signature)
	assert.Equal(t, "public void f(int x)", chunks[1].Signature)
	assert.Equal(t, "public void f(String s)", chunks[2].Signature)
}

func TestChunkSource_Deterministic(t *testing.T) {
	first, err := New(nil).ChunkSource("OverloadTest.java", []byte(overloadSource))
	require.NoError(t, err)

	reformatted := strings.ReplaceAll(overloadSource, "(int x)", "(  int   x )")
	second, err := New(nil).ChunkSource("OverloadTest.java", []byte(reformatted))
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Signature, second[i].Signature)
	}
}

func TestChunkFile_InheritanceFlattening(t *testing.T) {
	dir := t.TempDir()
	animal := `package com.example.animals;
public class Animal {
    public void eat() { chew(); }
    public void sleep() { rest(); }
}
`
	dog := `package com.example.animals;
public class Dog extends Animal {
    private String breed;
    public void bark() { say("woof"); }
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Animal.java"), []byte(animal), 0o644))
	dogPath := filepath.Join(dir, "Dog.java")
	require.NoError(t, os.WriteFile(dogPath, []byte(dog), 0o644))

	m, _, err := hierarchy.Scan(t.Context(), dir)
	require.NoError(t, err)

	chunks, err := ParseFile(dogPath, m)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	bark := chunks[0]
	assert.Equal(t, "bark", bark.OperationName)
	assert.Equal(t, []string{"eat", "sleep"}, bark.Context.Inherited)
	assert.NotContains(t, bark.Context.Inherited, "bark")
	assert.Equal(t, "Animal", bark.Context.Supertype)
	assert.Equal(t, []string{"private String breed"}, bark.Context.Fields)
	assert.Equal(t, dogPath, bark.FilePath)
	assert.Equal(t,
		"Package: com.example.animals, Class: Dog, Fields: private String breed, Extends: Animal, Inherited Methods: [eat, sleep]",
		bark.Context.String())
}

func TestChunkSource_NoHierarchy(t *testing.T) {
	chunks, err := New(nil).ChunkSource("Dog.java", []byte(`class Dog extends Animal { public void bark() { say(); } }`))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{}, chunks[0].Context.Inherited)
	assert.Equal(t, types.NoNamespace, chunks[0].Context.NamespaceOrNone())
	assert.Equal(t, types.ComputeChunkID("None", "Dog", "public void bark()"), chunks[0].ID)
}

func TestChunkSource_DependencyFiltering(t *testing.T) {
	src := `package bank;
public class Ledger {
    public void f(String s, int n, Transaction t, List<Widget> w) { post(t); }
}
`
	chunks, err := New(nil).ChunkSource("Ledger.java", []byte(src))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"Transaction", "Widget"}, chunks[0].DependencyTypes)
	assert.Equal(t, "public void f(String s, int n, Transaction t, List<Widget> w)", chunks[0].Signature)
}

func TestChunkSource_Constructors(t *testing.T) {
	src := `package com.example;
public class Account {
    public Account(Owner owner) { this.owner = owner; }
    public void Account() { legacy(); }
    private Account() { this(null); }
}
`
	chunks, err := New(nil).ChunkSource("Account.java", []byte(src))
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	ctor := chunks[0]
	assert.True(t, ctor.IsConstructor())
	assert.Equal(t, types.ConstructorName, ctor.OperationName)
	assert.Equal(t, "public <Constructor> Account(Owner owner)", ctor.Signature)
	assert.Equal(t, []string{"Owner"}, ctor.DependencyTypes)
	assert.Equal(t, "Account constructor", ctor.DisplayName())

	method := chunks[1]
	assert.False(t, method.IsConstructor())
	assert.Equal(t, "Account", method.OperationName)
	assert.NotEqual(t, ctor.ID, method.ID)
}

func TestChunkSource_RecordCompactConstructor(t *testing.T) {
	src := `package com.geo;
public record Pt(int x, Coord c) {
    public Pt { check(c); }
    Pt(int x) { this(x, null); }
    public int sum() { return x; }
}
`
	chunks, err := New(nil).ChunkSource("Pt.java", []byte(src))
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	ctor := chunks[0]
	assert.Equal(t, types.ConstructorName, ctor.OperationName)
	assert.Equal(t, "public <Constructor> Pt(int x, Coord c)", ctor.Signature)
	assert.Equal(t, []string{"Coord"}, ctor.DependencyTypes)
	assert.Equal(t, types.ComputeChunkID("com.geo", "Pt", ctor.Signature), ctor.ID)
	assert.Equal(t, "sum", chunks[1].OperationName)
}

func TestChunkSource_Filtering(t *testing.T) {
	src := `public abstract class Shape {
    public abstract double area();
    public void empty() { }
    public void commented() { /* todo */ }
    protected void hidden() { draw(); }
    void packagePrivate() { draw(); }
    public void draw() { render(); }
}
`
	chunks, err := New(nil).ChunkSource("Shape.java", []byte(src))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "draw", chunks[0].OperationName)
}

func TestChunkSource_SyntaxError(t *testing.T) {
	_, err := New(nil).ChunkSource("Bad.java", []byte("public class Bad { public void f( }"))
	assert.ErrorIs(t, err, types.ErrSyntax)
}

func TestChunkSource_SizeGuard(t *testing.T) {
	body := strings.Repeat("x();", 100) + "/* é */"
	src := "public class Big { public void big() { " + body + " } }"

	chunks, err := New(nil, WithMaxBodyBytes(64)).ChunkSource("Big.java", []byte(src))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	ch := chunks[0]
	assert.True(t, ch.Truncated)
	assert.LessOrEqual(t, len(ch.Body), 64)
	assert.Greater(t, ch.OriginalSize, 64)

	small, err := New(nil).ChunkSource("Big.java", []byte(src))
	require.NoError(t, err)
	assert.False(t, small[0].Truncated)
	assert.Equal(t, ch.ID, small[0].ID, "truncation never changes identity")
}

func TestTruncateBody_RuneBoundary(t *testing.T) {
	out, cut := truncateBody("aé", 2)
	assert.True(t, cut)
	assert.Equal(t, "a", out)

	out, cut = truncateBody("abc", 3)
	assert.False(t, cut)
	assert.Equal(t, "abc", out)
}

func TestChunkSource_NestedTypesAndTypeVars(t *testing.T) {
	src := `package pkg;
public class Outer<E> {
    public static class Inner<K> {
        public <T> void put(K key, T value, E element, Payload p) { store(p); }
    }
}
`
	chunks, err := New(nil).ChunkSource("Outer.java", []byte(src))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	put := chunks[0]
	assert.Equal(t, "Outer.Inner", put.Context.TypeName)
	assert.Equal(t, "public <T> void put(K key, T value, E element, Payload p)", put.Signature)
	assert.Equal(t, []string{"Payload"}, put.DependencyTypes)
}

func TestChunkSource_StrictResolution(t *testing.T) {
	m := hierarchy.NewMap([]types.TypeRecord{
		{QualifiedName: "base.Animal", SimpleName: "Animal", DeclaredOperations: []string{"eat"}},
	})
	src := `package zoo; public class Cat extends Animal { public void purr() { hum(); } }`

	loose, err := New(m).ChunkSource("Cat.java", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"eat"}, loose[0].Context.Inherited)

	strict, err := New(m, WithResolution(hierarchy.Strict)).ChunkSource("Cat.java", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []string{}, strict[0].Context.Inherited)
}

func BenchmarkChunkSource(b *testing.B) {
	c := New(nil)
	src := []byte(overloadSource)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.ChunkSource("OverloadTest.java", src); err != nil {
			b.Fatal(err)
		}
	}
}
