package tfidf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/kirillkom/domain-knowledge-rag/internal/core/domain"
)

type artifactDTO struct {
	Vocabulary *[]string   `json:"vocabulary"`
	IDF        *[]float64  `json:"idf"`
	Chunks     *[]chunkDTO `json:"chunks"`
}

type chunkDTO struct {
	ID       *string         `json:"id"`
	Text     string          `json:"text"`
	Metadata map[string]any  `json:"metadata"`
	Vector   [][]json.Number `json:"vector"`
	Norm     *float64        `json:"norm"`
}

// Parse decodes an index artifact. Any deviation from the expected shape is
// reported as domain.ErrInvalidPayload; no partial index is returned.
func Parse(data []byte) (*Index, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var dto artifactDTO
	if err := dec.Decode(&dto); err != nil {
		return nil, payloadError("decode artifact: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, payloadError("unexpected data after the artifact object")
	}
	if dto.Vocabulary == nil || dto.IDF == nil || dto.Chunks == nil {
		return nil, payloadError("vocabulary, idf and chunks are required")
	}

	vocabulary := *dto.Vocabulary
	idf := *dto.IDF
	if len(idf) != len(vocabulary) {
		return nil, payloadError("idf has %d entries for %d vocabulary terms", len(idf), len(vocabulary))
	}
	for i, v := range idf {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, payloadError("idf[%d] is not finite", i)
		}
	}

	chunks := make([]*Chunk, 0, len(*dto.Chunks))
	for i, raw := range *dto.Chunks {
		chunk, err := buildChunk(raw, len(vocabulary))
		if err != nil {
			return nil, payloadError("chunk %d: %v", i, err)
		}
		chunks = append(chunks, chunk)
	}

	return newIndex(vocabulary, idf, chunks), nil
}

func buildChunk(raw chunkDTO, dimensions int) (*Chunk, error) {
	if raw.ID == nil {
		return nil, fmt.Errorf("missing id")
	}
	if raw.Norm == nil {
		return nil, fmt.Errorf("missing norm")
	}
	if math.IsNaN(*raw.Norm) || math.IsInf(*raw.Norm, 0) {
		return nil, fmt.Errorf("norm is not finite")
	}

	lookup := make(map[int]float64, len(raw.Vector))
	for j, pair := range raw.Vector {
		if len(pair) != 2 {
			return nil, fmt.Errorf("vector pair %d has %d elements", j, len(pair))
		}
		index, err := pair[0].Int64()
		if err != nil {
			return nil, fmt.Errorf("vector pair %d: index %q is not an integer", j, pair[0])
		}
		if index < 0 || index >= int64(dimensions) {
			return nil, fmt.Errorf("vector pair %d: index %d outside vocabulary", j, index)
		}
		weight, err := pair[1].Float64()
		if err != nil || math.IsNaN(weight) || math.IsInf(weight, 0) {
			return nil, fmt.Errorf("vector pair %d: weight %q is not a finite number", j, pair[1])
		}
		if _, dup := lookup[int(index)]; dup {
			return nil, fmt.Errorf("vector pair %d: index %d repeated", j, index)
		}
		lookup[int(index)] = weight
	}

	weights := make([]Weight, 0, len(lookup))
	for index, value := range lookup {
		weights = append(weights, Weight{Index: index, Value: value})
	}
	sort.Slice(weights, func(a, b int) bool { return weights[a].Index < weights[b].Index })

	metadata := raw.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return &Chunk{
		ID:       *raw.ID,
		Text:     raw.Text,
		Metadata: metadata,
		Norm:     *raw.Norm,
		weights:  weights,
		lookup:   lookup,
	}, nil
}

func payloadError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidPayload, fmt.Sprintf(format, args...))
}
