//go:build linux

package extension

// XCB window surfaces are reachable on linux.
const xcbSurfaceScope = ScopeInstance
