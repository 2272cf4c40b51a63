package variate

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// RandomSeed returns a non-reproducible seed from crypto/rand, falling back
// to the wall clock if the system source fails.
func RandomSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	// Keep it positive so it prints and stores cleanly.
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}

// ResolveSeed returns *seed when set, otherwise a fresh RandomSeed.
func ResolveSeed(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return RandomSeed()
}
