package nas

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"sort"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
)

const defaultRetryDelay = 200 * time.Millisecond

// ShareFS is the slice of filesystem behavior the verifier needs from the
// mounted release share. go-billy filesystems satisfy it (osfs in production,
// memfs in tests).
type ShareFS interface {
	Stat(path string) (os.FileInfo, error)
	ReadDir(path string) ([]os.FileInfo, error)
}

// Verifier answers existence and listing questions against the release share.
// Transient connectivity failures on Exists are retried exactly once; a
// definitive not-found is never retried.
type Verifier struct {
	fs         ShareFS
	logger     *slog.Logger
	retryDelay time.Duration
}

// NewVerifier constructs a Verifier over the given share filesystem.
func NewVerifier(fs ShareFS, logger *slog.Logger, retryDelay time.Duration) *Verifier {
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &Verifier{fs: fs, logger: logger, retryDelay: retryDelay}
}

// Exists reports whether path is a directory on the share.
func (v *Verifier) Exists(ctx context.Context, path string) (bool, error) {
	var found bool
	backoff := retry.WithMaxRetries(1, retry.NewConstant(v.retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		info, err := v.fs.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				found = false
				return nil
			}
			shareErr := &ShareError{Op: "stat", Path: path, Transient: isTransient(err), Err: err}
			if shareErr.Transient {
				v.logger.Warn("transient share error, retrying", "path", path, "error", err)
				return retry.RetryableError(shareErr)
			}
			return shareErr
		}
		found = info.IsDir()
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// ListFiles returns the regular files in path, sorted by name so the listing
// order is stable across share implementations.
func (v *Verifier) ListFiles(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ShareError{Op: "readdir", Path: path, Err: err}
	}
	entries, err := v.fs.ReadDir(path)
	if err != nil {
		return nil, &ShareError{Op: "readdir", Path: path, Transient: isTransient(err), Err: err}
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

// isTransient classifies connectivity-class failures that are worth one more
// attempt, as opposed to definitive answers from the share.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EAGAIN)
}
