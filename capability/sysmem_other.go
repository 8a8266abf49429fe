//go:build !linux

package capability

// TotalUsableRAM returns a conservative default on platforms without a
// memory probe.
func TotalUsableRAM() uint64 {
	return defaultUsableRAM
}
