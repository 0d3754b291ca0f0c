// Package fileutil provides atomic file output: results are staged in a
// temporary file and renamed into place only once the caller commits.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TempContext holds state for one atomic write. Create it, write to TmpFile,
// then either Commit or let the deferred CleanupOnError remove the staging
// file.
type TempContext struct {
	// SrcInfo is the stat result for the source file.
	SrcInfo os.FileInfo

	// TmpFile is the staging file to write to.
	TmpFile *os.File

	tmpName   string
	outPath   string
	committed bool
}

// NewTempContext stats the source file and creates a staging file in the
// output directory, so the final rename never crosses filesystems.
func NewTempContext(srcPath, outPath string) (*TempContext, error) {
	info, err := os.Stat(srcPath)
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", srcPath, err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(outPath), ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}

	return &TempContext{
		SrcInfo: info,
		TmpFile: tmpFile,
		tmpName: tmpFile.Name(),
		outPath: outPath,
	}, nil
}

// Commit closes the staging file, fixes its permissions, and renames it to
// the output path. After Commit, CleanupOnError is a no-op.
func (tc *TempContext) Commit(perm os.FileMode) error {
	if tc.committed {
		return fmt.Errorf("output %q already committed", tc.outPath)
	}

	if err := tc.TmpFile.Close(); err != nil {
		return fmt.Errorf("closing temporary file: %w", err)
	}

	if err := os.Chmod(tc.tmpName, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tc.tmpName, tc.outPath); err != nil {
		return fmt.Errorf("renaming output file: %w", err)
	}

	tc.committed = true

	return nil
}

// CleanupOnError removes the staging file when the caller's operation
// failed, so a failed run leaves no output behind. Intended as a deferred
// call with the caller's named error.
func (tc *TempContext) CleanupOnError(errp *error) {
	if tc.committed || *errp == nil {
		return
	}

	tc.TmpFile.Close()    //nolint:gosec // best-effort cleanup
	os.Remove(tc.tmpName) //nolint:gosec // best-effort cleanup
}

// PreserveTimes copies the source modification time onto the output file.
func PreserveTimes(outPath string, modTime time.Time) error {
	if err := os.Chtimes(outPath, modTime, modTime); err != nil {
		return fmt.Errorf("preserving timestamps: %w", err)
	}

	return nil
}
