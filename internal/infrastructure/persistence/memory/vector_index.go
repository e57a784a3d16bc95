package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"antbox-backend/internal/repository"
)

// VectorIndex is a brute-force in-memory vector database. Scores are cosine
// similarities mapped into [0,1].
type VectorIndex struct {
	mu      sync.RWMutex
	entries map[string]map[string]repository.VectorEntry
}

// NewVectorIndex creates an empty vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{entries: make(map[string]map[string]repository.VectorEntry)}
}

// Upsert stores or replaces the embedding for a node.
func (v *VectorIndex) Upsert(ctx context.Context, tenant string, entry repository.VectorEntry) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.entries[tenant] == nil {
		v.entries[tenant] = make(map[string]repository.VectorEntry)
	}
	v.entries[tenant][entry.NodeUUID] = entry
	return nil
}

// DeleteByNodeUUID drops a node's embedding. Missing entries are ignored:
// deletion races with indexing on the event bus.
func (v *VectorIndex) DeleteByNodeUUID(ctx context.Context, tenant, uuid string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.entries[tenant], uuid)
	return nil
}

// Search returns the topK nearest entries by cosine similarity.
func (v *VectorIndex) Search(ctx context.Context, tenant string, vector []float32, topK int) ([]repository.VectorMatch, error) {
	v.mu.RLock()
	matches := make([]repository.VectorMatch, 0, len(v.entries[tenant]))
	for uuid, entry := range v.entries[tenant] {
		matches = append(matches, repository.VectorMatch{
			NodeUUID: uuid,
			Score:    CosineScore(vector, entry.Vector),
		})
	}
	v.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].NodeUUID < matches[j].NodeUUID
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// CosineScore maps the cosine similarity of two vectors into [0,1].
// Mismatched or zero vectors score 0.
func CosineScore(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}
