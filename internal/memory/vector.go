package memory

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Embeddings are stored as a BLOB: 4-byte little-endian dimension header
// followed by the float32 values, little-endian.
const (
	vectorHeaderBytes = 4
	vectorValueBytes  = 4
)

// EncodeVector serializes an embedding into its storage blob.
func EncodeVector(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("encode vector: empty vector")
	}

	blob := make([]byte, vectorHeaderBytes, vectorHeaderBytes+len(vec)*vectorValueBytes)
	binary.LittleEndian.PutUint32(blob, uint32(len(vec)))
	for i, v := range vec {
		if !finite(float64(v)) {
			return nil, fmt.Errorf("encode vector: non-finite value at index %d", i)
		}
		blob = binary.LittleEndian.AppendUint32(blob, math.Float32bits(v))
	}
	return blob, nil
}

// DecodeVector parses a blob produced by EncodeVector.
func DecodeVector(blob []byte) ([]float32, error) {
	if len(blob) < vectorHeaderBytes {
		return nil, fmt.Errorf("decode vector: blob too short: %d bytes", len(blob))
	}
	dim := int(binary.LittleEndian.Uint32(blob))
	if dim <= 0 {
		return nil, fmt.Errorf("decode vector: invalid dimension: %d", dim)
	}
	if len(blob) != vectorHeaderBytes+dim*vectorValueBytes {
		return nil, fmt.Errorf("decode vector: dimension %d does not match payload of %d bytes", dim, len(blob)-vectorHeaderBytes)
	}

	vec := make([]float32, dim)
	for i := range vec {
		off := vectorHeaderBytes + i*vectorValueBytes
		v := math.Float32frombits(binary.LittleEndian.Uint32(blob[off:]))
		if !finite(float64(v)) {
			return nil, fmt.Errorf("decode vector: non-finite value at index %d", i)
		}
		vec[i] = v
	}
	return vec, nil
}

// CosineSimilarity returns the cosine of the angle between a and b,
// clamped to [-1, 1].
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("cosine similarity: empty vector")
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine similarity: dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("cosine similarity: zero-norm vector")
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	return score, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
