package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/klauspost/compress/zip"

	"github.com/tungetti/cts/internal/constants"
	"github.com/tungetti/cts/internal/errors"
	"github.com/tungetti/cts/internal/logging"
)

// ArchiveFetcher downloads a source archive of the reference data repository
// and unpacks it into place. The archive's single top-level directory is
// renamed onto the destination, so the destination appears complete or not
// at all.
type ArchiveFetcher struct {
	client      *http.Client
	urlTemplate string
	prefix      string
	maxRetries  uint64
	newBackOff  func() backoff.BackOff
	logger      logging.Logger
}

// FetcherOption configures the archive fetcher.
type FetcherOption func(*ArchiveFetcher)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.client = c
	}
}

// WithURLTemplate sets the archive URL; %s is replaced by the revision.
func WithURLTemplate(tmpl string) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.urlTemplate = tmpl
	}
}

// WithMaxRetries sets how many times a failed download is retried.
func WithMaxRetries(n uint64) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.maxRetries = n
	}
}

// WithBackOff sets the retry schedule.
func WithBackOff(fn func() backoff.BackOff) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.newBackOff = fn
	}
}

// WithFetchLogger sets the logger.
func WithFetchLogger(l logging.Logger) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.logger = l
	}
}

// NewArchiveFetcher creates a fetcher for the google-coral/test_data archives.
func NewArchiveFetcher(opts ...FetcherOption) *ArchiveFetcher {
	f := &ArchiveFetcher{
		client:      &http.Client{Timeout: constants.FetchTimeout},
		urlTemplate: constants.TestDataArchiveURL,
		prefix:      constants.TestDataArchivePrefix,
		maxRetries:  3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 2 * time.Second
			b.MaxElapsedTime = 5 * time.Minute
			return b
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL returns the archive URL of revision.
func (f *ArchiveFetcher) URL(revision string) string {
	return fmt.Sprintf(f.urlTemplate, revision)
}

// Fetch implements Fetcher.
func (f *ArchiveFetcher) Fetch(ctx context.Context, revision, dest string) error {
	work, err := os.MkdirTemp(filepath.Dir(dest), ".cts-fetch-*")
	if err != nil {
		return errors.Wrap(errors.DataUnavailable, "cannot create staging directory", err).
			WithOp("dataset.Fetch")
	}
	defer os.RemoveAll(work)

	archive := filepath.Join(work, "archive.zip")
	url := f.URL(revision)
	f.logger.Info("downloading test data", "url", url)

	op := func() error {
		return f.download(ctx, url, archive)
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Warn("download failed, retrying", "error", err, "wait", wait.Round(time.Millisecond))
	}
	b := backoff.WithContext(backoff.WithMaxRetries(f.newBackOff(), f.maxRetries), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return err
	}

	staging := filepath.Join(work, "extract")
	f.logger.Info("extracting test data", "archive", archive)
	if err := extractZip(ctx, archive, staging); err != nil {
		return err
	}

	root := filepath.Join(staging, f.prefix+revision)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return errors.Newf(errors.DataUnavailable, "archive does not contain %s", f.prefix+revision).
			WithOp("dataset.Fetch")
	}

	if err := os.Rename(root, dest); err != nil {
		return errors.Wrap(errors.DataUnavailable, "cannot move test data into place", err).
			WithOp("dataset.Fetch")
	}
	return nil
}

// download writes url to path. Client errors are permanent; network errors
// and server errors are retried.
func (f *ArchiveFetcher) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(errors.Wrapf(errors.Network, err, "create download request for %q", url))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(errors.Wrap(errors.Cancelled, "download cancelled", ctx.Err()))
		}
		return errors.Wrapf(errors.Network, err, "download %q", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := errors.Newf(errors.Network, "download %q: %s", url, resp.Status)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return err
		}
		return backoff.Permanent(err)
	}

	out, err := os.Create(path)
	if err != nil {
		return backoff.Permanent(errors.Wrap(errors.DataUnavailable, "cannot create archive file", err))
	}
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(errors.Network, err, "download %q interrupted after %d bytes", url, n)
	}

	f.logger.Debug("download complete", "bytes", n)
	return nil
}

// extractZip unpacks archive into dir. Entries that would land outside dir
// are rejected.
func extractZip(ctx context.Context, archive, dir string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return errors.Wrap(errors.DataUnavailable, "cannot open archive", err).WithOp("dataset.extract")
	}
	defer r.Close()

	root := filepath.Clean(dir) + string(os.PathSeparator)
	for _, zf := range r.File {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.Cancelled, "extraction cancelled", err).WithOp("dataset.extract")
		}

		target := filepath.Join(dir, zf.Name)
		if !strings.HasPrefix(target+string(os.PathSeparator), root) {
			return errors.Newf(errors.DataUnavailable, "archive entry %q escapes the destination", zf.Name).
				WithOp("dataset.extract")
		}

		if err := extractEntry(zf, target); err != nil {
			return errors.Wrapf(errors.DataUnavailable, err, "cannot extract %s", zf.Name).
				WithOp("dataset.extract")
		}
	}
	return nil
}

func extractEntry(zf *zip.File, target string) error {
	mode := zf.Mode()
	if mode.IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if mode&os.ModeSymlink != 0 {
		link, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		return os.Symlink(string(link), target)
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

var (
	_ Fetcher = (*ArchiveFetcher)(nil)
	_ Fetcher = FetcherFunc(nil)
)
