// Package chunker extracts method and constructor chunks from Java source.
//
// A chunk is one public operation with a non-empty body, together with the
// structural context of its enclosing type:
//
//	c := chunker.New(hierarchyMap)
//	chunks, err := c.ChunkFile("/src/com/example/Dog.java")
//
// # Identity
//
// Each chunk's signature is normalized so that source formatting never
// changes it:
//
//	public void pay(Map<String, List<Order>> orders)
//	public <Constructor> Dog(String name)
//
// The chunk ID is sha256(package + "::" + type + "::" + signature), so
// overloads get distinct IDs and re-parsing an unchanged file reproduces the
// same IDs.
//
// # Dependencies
//
// DependencyTypes lists the custom parameter types an operation needs,
// recovering generic arguments (List<Widget> yields Widget) and skipping
// primitives, boxes, String, common collections and Optional.
//
// # Size Guard
//
// Bodies longer than the configured limit are truncated and flagged so the
// enrichment step uses a fallback summary instead of sending them to a model.
package chunker
