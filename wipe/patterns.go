package wipe

// patternCatalog is the fixed ordered set of overwrite patterns. The first
// four are the classic single-byte fills; the last three are 3-byte rotors
// (10010010 01001001 00100100 and its rotations) taken from the
// DoD 5220.22-M ECE schedule. A pass writes its pattern repeated across the
// whole file, so requests beyond the catalog size are capped rather than
// cycled.
var patternCatalog = [][]byte{
	{0x00},
	{0xFF},
	{0xAA},
	{0x55},
	{0x92, 0x49, 0x24},
	{0x49, 0x24, 0x92},
	{0x24, 0x92, 0x49},
}

// CatalogSize is the number of distinct overwrite patterns available, and
// therefore the maximum number of effective passes.
func CatalogSize() int {
	return len(patternCatalog)
}

// EffectivePasses caps a requested pass count to the pattern catalog size.
func EffectivePasses(requested int) int {
	if requested < 1 {
		return 1
	}
	if requested > len(patternCatalog) {
		return len(patternCatalog)
	}
	return requested
}

// fillChunk writes pattern repeated (truncated at the end) into buf.
func fillChunk(buf, pattern []byte) {
	for i := range buf {
		buf[i] = pattern[i%len(pattern)]
	}
}
