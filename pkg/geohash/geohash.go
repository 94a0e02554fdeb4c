// Package geohash implements a base-32 geohash codec: encoding a
// latitude/longitude pair into a fixed-precision cell code and computing
// the codes of adjacent cells. The codec is pure and carries no state.
//
// A code identifies a rectangular cell produced by interleaved binary
// subdivision of the longitude and latitude ranges (longitude first),
// five bits per output character. At precision 8 a cell edge is roughly
// 38 meters.
package geohash

import "strings"

// Base32 is the geohash symbol alphabet.
const Base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Direction selects which adjacent cell Neighbor computes.
type Direction int

const (
	Top Direction = iota
	Bottom
	Left
	Right
)

// Neighbor and border alphabets, indexed by direction and by the parity
// of the code length at the character being adjusted. Index 0 applies
// when that prefix length is even, index 1 when it is odd; the parity
// decides whether the trailing character's first bit splits longitude
// or latitude.
var (
	neighborTable = [4][2]string{
		Top:    {"p0r21436x8zb9dcf5h7kjnmqesgutwvy", "bc01fg45238967deuvhjyznpkmstqrwx"},
		Bottom: {"14365h7k9dcfesgujnmqp0r2twvyx8zb", "238967debc01fg45kmstqrwxuvhjyznp"},
		Left:   {"238967debc01fg45kmstqrwxuvhjyznp", "14365h7k9dcfesgujnmqp0r2twvyx8zb"},
		Right:  {"bc01fg45238967deuvhjyznpkmstqrwx", "p0r21436x8zb9dcf5h7kjnmqesgutwvy"},
	}
	borderTable = [4][2]string{
		Top:    {"prxz", "bcfguvyz"},
		Bottom: {"028b", "0145hjnp"},
		Left:   {"0145hjnp", "028b"},
		Right:  {"bcfguvyz", "prxz"},
	}
)

// Encode returns the geohash code of (lat, lon) at the given precision.
// Deterministic: the same input always yields the same code, and the
// code length always equals precision. Inputs are assumed to be within
// the valid coordinate ranges; callers validate at the system boundary.
func Encode(lat, lon float64, precision int) string {
	var (
		latMin, latMax = -90.0, 90.0
		lonMin, lonMax = -180.0, 180.0
		code           = make([]byte, 0, precision)
		ch             int
		bit            int
		even           = true
	)
	for len(code) < precision {
		if even {
			mid := (lonMin + lonMax) / 2
			if lon > mid {
				ch |= 1 << (4 - bit)
				lonMin = mid
			} else {
				lonMax = mid
			}
		} else {
			mid := (latMin + latMax) / 2
			if lat > mid {
				ch |= 1 << (4 - bit)
				latMin = mid
			} else {
				latMax = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
		} else {
			code = append(code, Base32[ch])
			bit = 0
			ch = 0
		}
	}
	return string(code)
}

// Neighbor returns the code of the cell adjacent to code in the given
// direction. An empty code has no neighbors and yields "".
//
// Border characters carry into the parent cell: the adjustment walks
// toward the most significant character until a non-border character
// absorbs the increment. The walk is iterative; codes are short and
// bounded by the configured precision, so at most precision characters
// are touched. At the poles a Top/Bottom step has no true neighbor and
// the lookup wraps within the alphabet; across the antimeridian a
// Left/Right step wraps around the globe, which is the desired behavior.
func Neighbor(code string, dir Direction) string {
	if code == "" {
		return ""
	}
	b := []byte(code)
	for i := len(b) - 1; i >= 0; i-- {
		parity := (i + 1) % 2 // parity of the prefix length ending at i
		c := b[i]
		isBorder := strings.IndexByte(borderTable[dir][parity], c) >= 0
		j := strings.IndexByte(neighborTable[dir][parity], c)
		if j < 0 {
			return "" // not a geohash character
		}
		b[i] = Base32[j]
		if !isBorder {
			return string(b)
		}
		// carry into the parent prefix
	}
	// Carried past the first character: wrapped the whole range.
	return string(b)
}

// Neighbors returns the codes of the up to eight cells surrounding code,
// deduplicated. N/S/E/W come from direct lookups; the corners are
// compositions (NE is the right neighbor of the top neighbor). Adjacent
// compositions can coincide at low precision, so callers must tolerate
// fewer than eight entries. An empty code yields nil.
func Neighbors(code string) []string {
	if code == "" {
		return nil
	}
	n := Neighbor(code, Top)
	s := Neighbor(code, Bottom)
	set := make(map[string]struct{}, 8)
	for _, c := range []string{
		n, s,
		Neighbor(code, Right),
		Neighbor(code, Left),
		Neighbor(n, Right),
		Neighbor(n, Left),
		Neighbor(s, Right),
		Neighbor(s, Left),
	} {
		if c != "" && c != code {
			set[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}
