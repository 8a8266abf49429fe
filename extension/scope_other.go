//go:build !linux

package extension

// Without XCB the extension compiles in as unsupported, so request
// validation rejects it through the same path as an unknown name.
const xcbSurfaceScope = ScopeNotSupported
