package memory

import (
	"encoding/binary"
	"math"
)

// EncodeVector packs a vector into little-endian float32 bytes, one
// 4-byte group per component in index order. This is the wire format of
// the embedding column. An empty vector encodes to zero bytes.
func EncodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector is the exact inverse of EncodeVector. Trailing bytes that
// do not form a complete 4-byte group are truncated; empty or undersized
// input decodes to nil.
func DecodeVector(blob []byte) []float32 {
	n := len(blob) / 4
	if n == 0 {
		return nil
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return vec
}

// CosineSimilarity returns the dot product of two L2-normalized vectors,
// which equals their cosine similarity. Either side empty yields 0.
//
// When the lengths differ only the shared-length prefix contributes. This
// is intentional: it keeps retrieval working against blobs written under
// an older dimension setting, at the cost of a depressed score for the
// mismatched records.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
