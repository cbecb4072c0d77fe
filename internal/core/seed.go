package core

import "hash/fnv"

// DeriveSeed produces an independent seed for a named random stream.
// Every subsystem draws from its own stream so that adding draws in one
// never shifts the values seen by another.
func DeriveSeed(seed int64, stream string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(stream))
	return int64(mix64(uint64(seed) ^ h.Sum64()))
}

// mix64 is the splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
