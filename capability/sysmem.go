package capability

// defaultUsableRAM is assumed when the platform memory probe is
// unavailable or fails.
const defaultUsableRAM = 4 << 30
