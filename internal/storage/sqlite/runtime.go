package sqlite

import (
	"os"
	"path/filepath"

	"github.com/ncruces/go-sqlite3"
	"github.com/tetratelabs/wazero"
)

// init points the driver's wazero runtime at a persistent compilation
// cache. Without one the embedded SQLite wasm module is recompiled on
// every process start, which dominates startup for short invocations.
// Any failure here leaves the default in-memory compilation in place.
func init() {
	dir, err := os.UserCacheDir()
	if err != nil {
		return
	}
	cacheDir := filepath.Join(dir, "taskmesh", "wazero")
	cache, err := wazero.NewCompilationCacheWithDir(cacheDir)
	if err != nil {
		return
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
}
