//go:build linux

package capability

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// TotalUsableRAM reads the machine's usable memory from /proc/meminfo.
// When the probe fails a conservative 4 GiB default is assumed so the heap
// size stays plausible rather than zero.
func TotalUsableRAM() uint64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return defaultUsableRAM
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kib, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			break
		}
		return kib * 1024
	}
	return defaultUsableRAM
}
