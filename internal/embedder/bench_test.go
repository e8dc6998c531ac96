package embedder

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkComputeHash(b *testing.B) {
	texts := []string{
		"short",
		"Summary: Saves an order. | Keywords: save, order | Signature: public void save(Order order)",
	}

	for _, text := range texts {
		b.Run(fmt.Sprintf("len=%d", len(text)), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = ComputeHash(DefaultLocalModel, RolePassage, text)
			}
		})
	}
}

func BenchmarkLocalProvider(b *testing.B) {
	provider := NewLocalProvider(nil)
	ctx := context.Background()
	req := EmbeddingRequest{Text: "Summary: Transfers funds between accounts | Keywords: transfer, money, account"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := provider.GenerateEmbedding(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}
