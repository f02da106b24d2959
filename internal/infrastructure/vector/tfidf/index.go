package tfidf

import (
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

// Weight is one non-zero dimension of a sparse vector.
type Weight struct {
	Index int
	Value float64
}

// Chunk is one retrievable unit of an index. It is never mutated after load.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]any
	Norm     float64

	weights []Weight
	lookup  map[int]float64
}

// Vector returns a copy of the chunk's sparse vector sorted by index.
func (c *Chunk) Vector() []Weight {
	out := make([]Weight, len(c.weights))
	copy(out, c.weights)
	return out
}

// Index is an immutable TF-IDF index loaded from a pipeline artifact.
type Index struct {
	vocabulary []string
	idf        []float64
	terms      map[string]int
	chunks     []*Chunk
}

func newIndex(vocabulary []string, idf []float64, chunks []*Chunk) *Index {
	terms := make(map[string]int, len(vocabulary))
	for i, term := range vocabulary {
		if _, exists := terms[term]; !exists {
			terms[term] = i
		}
	}
	return &Index{
		vocabulary: vocabulary,
		idf:        idf,
		terms:      terms,
		chunks:     chunks,
	}
}

func (idx *Index) VocabularySize() int { return len(idx.vocabulary) }

func (idx *Index) Chunks() []*Chunk {
	out := make([]*Chunk, len(idx.chunks))
	copy(out, idx.chunks)
	return out
}

// Search ranks chunks by cosine similarity to the query. Ties are broken by
// ascending chunk id, then artifact order.
func (idx *Index) Search(query string, topK int, minScore float64) []domain.SearchResult {
	if topK <= 0 {
		return []domain.SearchResult{}
	}
	queryVector := idx.vectorise(query)
	if len(queryVector) == 0 {
		return []domain.SearchResult{}
	}

	var sumSquares float64
	for _, w := range queryVector {
		sumSquares += w.Value * w.Value
	}
	queryNorm := math.Sqrt(sumSquares)
	if queryNorm == 0 {
		return []domain.SearchResult{}
	}

	type scored struct {
		chunk *Chunk
		order int
		score float64
	}
	hits := make([]scored, 0, 8)
	for i, chunk := range idx.chunks {
		if chunk.Norm <= 0 {
			continue
		}
		var dot float64
		for _, w := range queryVector {
			if v, ok := chunk.lookup[w.Index]; ok {
				dot += w.Value * v
			}
		}
		if dot <= 0 {
			continue
		}
		similarity := dot / (chunk.Norm * queryNorm)
		if similarity < minScore {
			continue
		}
		hits = append(hits, scored{chunk: chunk, order: i, score: round6(similarity)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if hits[i].chunk.ID != hits[j].chunk.ID {
			return hits[i].chunk.ID < hits[j].chunk.ID
		}
		return hits[i].order < hits[j].order
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, domain.SearchResult{
			ChunkID:  hit.chunk.ID,
			Score:    hit.score,
			Text:     hit.chunk.Text,
			Metadata: hit.chunk.Metadata,
		})
	}
	return results
}

// vectorise builds the query's sparse vector. Only in-vocabulary tokens count
// toward the term-frequency denominator.
func (idx *Index) vectorise(query string) []Weight {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	counts := make(map[int]int)
	total := 0
	for _, token := range tokenize(query) {
		i, ok := idx.terms[token]
		if !ok {
			continue
		}
		counts[i]++
		total++
	}
	if total == 0 {
		return nil
	}

	out := make([]Weight, 0, len(counts))
	for i, count := range counts {
		var idf float64
		if i < len(idx.idf) {
			idf = idx.idf[i]
		}
		out = append(out, Weight{Index: i, Value: float64(count) / float64(total) * idf})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Index < out[b].Index })
	return out
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
