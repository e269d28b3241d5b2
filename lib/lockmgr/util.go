package lockmgr

// mix64 scrambles the bits of x (splitmix64 finalizer) so that neighbouring
// locations land on different stripes.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// nextPowerOfTwo returns the smallest power of two >= n (n > 0)
func nextPowerOfTwo(n uint64) uint64 {
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}
