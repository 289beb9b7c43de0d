package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/mod/semver"

	"github.com/taskmesh/taskmesh/internal/debug"
	"github.com/taskmesh/taskmesh/internal/storage"
)

// binaryVersionKey is the metadata key holding the version of the last
// binary that touched this store.
const binaryVersionKey = "binary_version"

// trackVersion records the running binary's version in store metadata and
// warns when this binary is older than the one the store last saw: newer
// binaries may have written rows this one misreads. Bookkeeping is
// best-effort and never blocks the command.
func trackVersion(ctx context.Context, s storage.Storage) {
	prev, err := s.GetMetadata(ctx, binaryVersionKey)
	if err != nil {
		debug.Logf("version tracking: read failed: %v", err)
		return
	}
	if prev == Version {
		return
	}

	if prev != "" && semver.Compare("v"+Version, "v"+prev) < 0 && !quietFlag && !jsonOutput {
		fmt.Fprintf(os.Stderr, "Warning: this store was last written by tm %s; you are running %s\n", prev, Version)
		fmt.Fprintf(os.Stderr, "Data written by the newer version may not round-trip. Consider upgrading.\n")
	}

	if err := s.SetMetadata(ctx, binaryVersionKey, Version); err != nil {
		debug.Logf("version tracking: write failed: %v", err)
	}
}
