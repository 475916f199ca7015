package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// serializeEmbedding encodes a float32 vector as little-endian bytes for
// the chunks.embedding BLOB column. Grounded on the teacher's
// internal/storage/encoding.go.
func serializeEmbedding(emb []float32) []byte {
	out := make([]byte, len(emb)*4)
	for i, f := range emb {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// deserializeEmbedding reverses serializeEmbedding.
func deserializeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("store: invalid embedding blob length %d", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
