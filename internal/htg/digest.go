package htg

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Digest returns a deterministic hash over all output arrays. Two runs over
// the same input with the same configuration produce the same digest, which
// is how run summaries detect divergence.
func (g *Grid) Digest() uint64 {
	h := xxhash.New()
	var buf [8]byte
	writeF64 := func(vs []float64) {
		for _, v := range vs {
			// Normalize NaN payloads so undefined values hash equally.
			if math.IsNaN(v) {
				v = math.NaN()
			}
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	writeI64 := func(vs []int64) {
		for _, v := range vs {
			binary.LittleEndian.PutUint64(buf[:], uint64(v))
			h.Write(buf[:])
		}
	}
	writeF64(g.Measured)
	if g.Display != nil {
		writeF64(g.Display)
	}
	writeI64(g.LeafCount)
	writeI64(g.PointCount)
	for _, m := range g.Mask {
		b := byte(0)
		if m {
			b = 1
		}
		h.Write([]byte{b})
	}
	return h.Sum64()
}
