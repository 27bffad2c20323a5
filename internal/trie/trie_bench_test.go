package trie

import (
	"math/rand"
	"strings"
	"testing"
)

func generateRandomScopes(count, maxLength int) []string {
	scopes := make([]string, count)
	for i := range count {
		length := rand.Intn(maxLength) + 1
		parts := make([]string, length)
		for j := range length {
			parts[j] = string(rune('a' + rand.Intn(26)))
		}
		scopes[i] = strings.Join(parts, ".")
	}
	return scopes
}

func BenchmarkInsert(b *testing.B) {
	sizes := []struct {
		name      string
		count     int
		maxLength int
	}{
		{"Small", 100, 5},
		{"Medium", 1000, 10},
		{"Large", 10000, 20},
	}

	for _, size := range sizes {
		b.Run(size.name, func(b *testing.B) {
			scopes := generateRandomScopes(size.count, size.maxLength)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				tr := New[int]()
				for j, s := range scopes {
					tr.Insert(s, j)
				}
			}
		})
	}
}

func BenchmarkLookup(b *testing.B) {
	sizes := []struct {
		name      string
		count     int
		maxLength int
	}{
		{"Small", 100, 5},
		{"Medium", 1000, 10},
		{"Large", 10000, 20},
	}

	for _, size := range sizes {
		b.Run(size.name, func(b *testing.B) {
			selectors := generateRandomScopes(size.count, size.maxLength)
			scopes := generateRandomScopes(size.count, size.maxLength+5)

			tr := New[int]()
			for j, s := range selectors {
				tr.Insert(s, j)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				tr.Lookup(scopes[i%len(scopes)])
			}
		})
	}
}
