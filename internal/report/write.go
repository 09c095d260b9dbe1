package report

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/tungetti/cts/internal/errors"
)

// lockRetry is how often Write polls a lock held by another harness.
const lockRetry = 200 * time.Millisecond

// lockPath returns the hidden sibling that serialises writers of path.
func lockPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".lock")
}

// Write renders r to path atomically: the report goes to a temporary file in
// the same directory which is synced and renamed over path. On failure the
// previous report, if any, is left untouched.
func Write(ctx context.Context, r *Report, path string) error {
	const op = "report.Write"

	dir := filepath.Dir(path)
	lock := flock.New(lockPath(path))
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return errors.Wrapf(errors.ReportWrite, err, "cannot lock %s", path).WithOp(op)
	}
	if !locked {
		return errors.Newf(errors.ReportWrite, "cannot lock %s", path).WithOp(op)
	}
	defer func() { _ = lock.Unlock() }()

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(errors.ReportWrite, err, "cannot create temporary file in %s", dir).WithOp(op)
	}
	tmp := f.Name()
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if err := r.Render(f); err != nil {
		return errors.Wrapf(errors.ReportWrite, err, "cannot write %s", tmp).WithOp(op)
	}
	if err := f.Sync(); err != nil {
		return errors.Wrapf(errors.ReportWrite, err, "cannot sync %s", tmp).WithOp(op)
	}
	if err := f.Chmod(0o644); err != nil {
		return errors.Wrapf(errors.ReportWrite, err, "cannot set mode of %s", tmp).WithOp(op)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(errors.ReportWrite, err, "cannot close %s", tmp).WithOp(op)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(errors.ReportWrite, err, "cannot replace %s", path).WithOp(op)
	}
	committed = true
	return nil
}
