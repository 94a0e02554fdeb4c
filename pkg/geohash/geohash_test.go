package geohash

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeKnownVectors(t *testing.T) {
	testCases := []struct {
		name      string
		lat       float64
		lon       float64
		precision int
		expected  string
	}{
		{"Jutland", 57.64911, 10.40744, 11, "u4pruydqqvj"},
		{"Jutland short", 57.64911, 10.40744, 8, "u4pruydq"},
		{"Leon", 42.605, -5.603, 5, "ezs42"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Encode(tc.lat, tc.lon, tc.precision))
		})
	}
}

func TestEncodeDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		lat := r.Float64()*180 - 90
		lon := r.Float64()*360 - 180

		code := Encode(lat, lon, 8)
		assert.Len(t, code, 8)
		assert.Equal(t, code, Encode(lat, lon, 8))

		// Lower precision is a prefix of higher precision.
		assert.Equal(t, code[:5], Encode(lat, lon, 5))
	}
}

func TestEncodeAlphabet(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 100; i++ {
		code := Encode(r.Float64()*180-90, r.Float64()*360-180, 12)
		for _, c := range code {
			assert.Contains(t, Base32, string(c))
		}
	}
}

func TestNeighborSymmetry(t *testing.T) {
	// Right-then-left (and top-then-bottom) recovers the original code.
	// Random codes away from the extreme poles, where the top/bottom
	// wrap is a documented representational edge case.
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		code := Encode(r.Float64()*120-60, r.Float64()*360-180, 8)

		assert.Equal(t, code, Neighbor(Neighbor(code, Right), Left), "right/left on %s", code)
		assert.Equal(t, code, Neighbor(Neighbor(code, Left), Right), "left/right on %s", code)
		assert.Equal(t, code, Neighbor(Neighbor(code, Top), Bottom), "top/bottom on %s", code)
		assert.Equal(t, code, Neighbor(Neighbor(code, Bottom), Top), "bottom/top on %s", code)
	}
}

func TestNeighborSingleChar(t *testing.T) {
	// First-character grid:
	//   b c f g u v y z
	//   8 9 d e s t w x
	//   2 3 6 7 k m q r
	//   0 1 4 5 h j n p
	assert.Equal(t, "v", Neighbor("u", Right))
	assert.Equal(t, "g", Neighbor("u", Left))
	assert.Equal(t, "s", Neighbor("u", Bottom))
	assert.Equal(t, "t", Neighbor("s", Right))
	assert.Equal(t, "u", Neighbor("s", Top))
	assert.Equal(t, "k", Neighbor("s", Bottom))
}

func TestNeighborBorderCarry(t *testing.T) {
	// A border character carries the increment into the parent prefix:
	// the right edge of one parent cell touches the left edge of the
	// next parent over.
	right := Neighbor("u4pruydq", Right)
	assert.Len(t, right, 8)
	assert.NotEqual(t, "u4pruydq", right)
	assert.Equal(t, "u4pruydq", Neighbor(right, Left))
}

func TestNeighborEmptyCode(t *testing.T) {
	assert.Equal(t, "", Neighbor("", Right))
	assert.Nil(t, Neighbors(""))
}

func TestNeighborsSurroundPoint(t *testing.T) {
	// A point nudged one cell's width in any direction must land either
	// in the same cell or in one of the eight neighbors.
	const precision = 8
	lat, lon := 35.681236, 139.767125
	code := Encode(lat, lon, precision)

	cells := map[string]struct{}{code: {}}
	for _, n := range Neighbors(code) {
		require.Len(t, n, precision)
		cells[n] = struct{}{}
	}

	// Cell spans at precision 8: 20 bits per axis.
	dLat := 180.0 / (1 << 20)
	dLon := 360.0 / (1 << 20)
	for _, delta := range []struct{ dLat, dLon float64 }{
		{dLat, 0}, {-dLat, 0}, {0, dLon}, {0, -dLon},
		{dLat, dLon}, {dLat, -dLon}, {-dLat, dLon}, {-dLat, -dLon},
	} {
		moved := Encode(lat+delta.dLat, lon+delta.dLon, precision)
		_, ok := cells[moved]
		assert.True(t, ok, "moved cell %s not covered by %s + neighbors", moved, code)
	}
}

func TestNeighborsDeduplicated(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	for i := 0; i < 200; i++ {
		code := Encode(r.Float64()*120-60, r.Float64()*360-180, 8)
		ns := Neighbors(code)

		assert.LessOrEqual(t, len(ns), 8)
		seen := make(map[string]struct{}, len(ns))
		for _, n := range ns {
			assert.NotEqual(t, code, n)
			_, dup := seen[n]
			assert.False(t, dup, "duplicate neighbor %s of %s", n, code)
			seen[n] = struct{}{}
		}
	}
}

func TestNeighborAntimeridianWrap(t *testing.T) {
	// Stepping right across the antimeridian wraps around the globe
	// and stays reversible.
	code := Encode(35.0, 179.9999, 4)
	require.NotEmpty(t, code)

	wrapped := Neighbor(code, Right)
	assert.Len(t, wrapped, 4)
	assert.Equal(t, code, Neighbor(wrapped, Left))
}

func BenchmarkEncode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Encode(35.681236, 139.767125, 8)
	}
}

func BenchmarkNeighbors(b *testing.B) {
	code := Encode(35.681236, 139.767125, 8)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Neighbors(code)
	}
}

func ExampleEncode() {
	fmt.Println(Encode(57.64911, 10.40744, 11))
	// Output: u4pruydqqvj
}
