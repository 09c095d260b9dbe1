// Package dataset makes sure the reference data the tests read is present
// before any of them runs. The data is fetched once, from a pinned revision,
// and never re-validated afterwards.
package dataset

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/tungetti/cts/internal/constants"
	"github.com/tungetti/cts/internal/errors"
	"github.com/tungetti/cts/internal/logging"
)

// Fetcher retrieves one revision of the reference data into dest. dest does
// not exist when Fetch is called and must be a complete directory when it
// returns nil.
type Fetcher interface {
	Fetch(ctx context.Context, revision, dest string) error
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, revision, dest string) error

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, revision, dest string) error {
	return f(ctx, revision, dest)
}

// lockRetryDelay is how often a waiting harness polls the fetch lock.
const lockRetryDelay = 500 * time.Millisecond

// Gate ensures the reference data directory exists.
type Gate struct {
	fetcher  Fetcher
	revision string
	logger   logging.Logger
}

// GateOption configures the gate.
type GateOption func(*Gate)

// WithRevision pins the revision fetched when the directory is missing.
func WithRevision(rev string) GateOption {
	return func(g *Gate) {
		g.revision = rev
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) GateOption {
	return func(g *Gate) {
		g.logger = l
	}
}

// NewGate creates a gate that uses fetcher when the data is missing.
func NewGate(fetcher Fetcher, opts ...GateOption) *Gate {
	g := &Gate{
		fetcher:  fetcher,
		revision: constants.TestDataRevision,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Revision returns the pinned revision.
func (g *Gate) Revision() string {
	return g.revision
}

// Ensure returns nil once path is a directory. When it already is, nothing is
// fetched. Otherwise the pinned revision is fetched under a lock shared with
// other harness instances; a failed fetch yields a DataUnavailable error.
func (g *Gate) Ensure(ctx context.Context, path string) error {
	present, err := isDir(path)
	if err != nil {
		return err
	}
	if present {
		g.logger.Debug("test data present", "path", path)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.DataUnavailable, "cannot create parent of data directory", err).
			WithOp("dataset.Ensure")
	}

	lock := flock.New(lockPath(path))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		return errors.Wrap(errors.DataUnavailable, "failed to get fetch lock", err).
			WithOp("dataset.Ensure")
	}
	defer lock.Unlock()

	// Another instance may have fetched the data while we waited.
	if present, err := isDir(path); err != nil || present {
		return err
	}

	g.logger.Info("test data not found, fetching", "path", path, "revision", g.revision)
	start := time.Now()

	if err := g.fetcher.Fetch(ctx, g.revision, path); err != nil {
		return errors.Wrapf(errors.DataUnavailable, err, "fetch of revision %s failed", g.revision).
			WithOp("dataset.Ensure")
	}

	if present, err := isDir(path); err != nil {
		return err
	} else if !present {
		return errors.Newf(errors.DataUnavailable, "fetch of revision %s did not create %s", g.revision, path).
			WithOp("dataset.Ensure")
	}

	g.logger.Info("test data ready", "path", path, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// lockPath returns the hidden sibling that serialises fetches into path.
func lockPath(path string) string {
	path = filepath.Clean(path)
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".lock")
}

// isDir reports whether path is an existing directory. Anything else already
// at path is an error since it would block the fetch.
func isDir(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return false, nil
	case err != nil:
		return false, errors.Wrap(errors.DataUnavailable, "cannot stat data directory", err).
			WithOp("dataset.Ensure")
	case !info.IsDir():
		return false, errors.Newf(errors.DataUnavailable, "%s exists but is not a directory", path).
			WithOp("dataset.Ensure")
	}
	return true, nil
}
