// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package download fetches file content from update sites into a staging area.
//
// Jobs run on a bounded worker pool. Each job streams into a private
// temporary file, verifies the SHA-256 of what it received and only then
// renames the temporary file to its staging destination. Workers never touch
// the file collection; they report back with immutable Result values.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/updaterc/pkg/index"
	"github.com/walteh/updaterc/pkg/metrics"
	"github.com/walteh/updaterc/pkg/remote"
	"github.com/walteh/updaterc/pkg/retry"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrChecksumMismatch means the received content does not hash to the published checksum
	ErrChecksumMismatch = errors.Base("checksum mismatch")
	// ErrTransferFailed means the content could not be read from the site or written to staging
	ErrTransferFailed = errors.Base("transfer failed")
)

// 💥 Error is the failure of one job. It matches ErrChecksumMismatch or
// ErrTransferFailed with errors.Is and unwraps to the underlying cause.
type Error struct {
	Filename string
	Kind     error
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Filename, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Filename, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Fetcher opens remote content, remote.Client implements it
type Fetcher interface {
	Fetch(ctx context.Context, site index.UpdateSite, key string) (io.ReadCloser, int64, error)
}

// Progress receives byte counts while jobs stream
type Progress interface {
	ReportProgress(jobID string, done, total int64)
}

// 📦 Job describes one file to fetch
type Job struct {
	ID       string // progress key, unique within a batch
	Filename string
	Site     index.UpdateSite
	Key      string // content key on the site
	Size     int64  // expected size, used when the site does not report one
	Checksum string // expected SHA-256, hex
	Dest     string // staging path
}

// 📬 Result is the outcome of one job
type Result struct {
	JobID    string
	Filename string
	Dest     string
	Checksum string // observed checksum, empty on failure
	Bytes    int64
	Err      error
}

// OK reports whether the job's content is staged and verified
func (r Result) OK() bool {
	return r.Err == nil
}

// Options configures a Downloader
type Options struct {
	Fs          afero.Fs
	Fetcher     Fetcher
	Progress    Progress // optional
	Concurrency int      // defaults to 4
	Retry       retry.Config
}

// ⬇️ Downloader runs download jobs
type Downloader struct {
	fs          afero.Fs
	fetcher     Fetcher
	progress    Progress
	concurrency int
	retry       retry.Config
}

// 🏭 New creates a Downloader
func New(opts Options) (*Downloader, error) {
	if opts.Fs == nil {
		return nil, errors.New("filesystem is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Downloader{
		fs:          opts.Fs,
		fetcher:     opts.Fetcher,
		progress:    opts.Progress,
		concurrency: concurrency,
		retry:       opts.Retry,
	}, nil
}

// 🚀 Start runs jobs in the background. Every job produces exactly one Result on the
// returned channel, which is closed when all jobs finished. Jobs not yet started when
// ctx is cancelled fail without touching the network.
func (d *Downloader) Start(ctx context.Context, jobs []Job) <-chan Result {
	results := make(chan Result, len(jobs))

	go func() {
		defer close(results)

		var g errgroup.Group
		g.SetLimit(d.concurrency)
		for _, job := range jobs {
			g.Go(func() error {
				results <- d.run(ctx, job)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return results
}

// Run executes jobs and returns their results in job order
func (d *Downloader) Run(ctx context.Context, jobs []Job) []Result {
	order := make(map[string]int, len(jobs))
	for i, job := range jobs {
		order[job.ID] = i
	}

	out := make([]Result, len(jobs))
	for res := range d.Start(ctx, jobs) {
		out[order[res.JobID]] = res
	}
	return out
}

func (d *Downloader) run(ctx context.Context, job Job) Result {
	logger := zerolog.Ctx(ctx).With().Str("file", job.Filename).Str("site", job.Site.Name).Logger()
	res := Result{JobID: job.ID, Filename: job.Filename, Dest: job.Dest}

	if err := ctx.Err(); err != nil {
		res.Err = errors.Errorf("download of %s not started: %w", job.Filename, err)
		metrics.RecordDownload(0, metrics.StatusCanceled)
		return res
	}
	if job.Checksum == "" {
		res.Err = &Error{Filename: job.Filename, Kind: ErrChecksumMismatch, Err: errors.New("no expected checksum to verify against")}
		metrics.RecordDownload(0, metrics.StatusChecksumMismatch)
		return res
	}

	err := retry.Do(ctx, d.retry, func(attempt int) error {
		if attempt > 1 {
			metrics.RecordDownloadRetry()
		}
		sum, n, err := d.attempt(ctx, job)
		if err != nil {
			return err
		}
		res.Checksum, res.Bytes = sum, n
		return nil
	})

	switch {
	case err == nil:
		logger.Debug().Int64("bytes", res.Bytes).Msg("staged")
		metrics.RecordDownload(res.Bytes, metrics.StatusSuccess)
	case errors.Is(err, ErrChecksumMismatch):
		metrics.RecordDownload(0, metrics.StatusChecksumMismatch)
	default:
		metrics.RecordDownload(0, metrics.StatusTransferFailed)
	}
	if err != nil {
		logger.Debug().Err(err).Msg("download failed")
		res.Err = err
	}
	return res
}

func (d *Downloader) attempt(ctx context.Context, job Job) (string, int64, error) {
	transferFailed := func(err error) error {
		return &Error{Filename: job.Filename, Kind: ErrTransferFailed, Err: err}
	}

	rc, size, err := d.fetcher.Fetch(ctx, job.Site, job.Key)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) || errors.Is(err, remote.ErrAuth) {
			return "", 0, transferFailed(err)
		}
		return "", 0, retry.Retryable(transferFailed(err))
	}
	defer rc.Close()

	total := job.Size
	if size >= 0 {
		total = size
	}

	if err := d.fs.MkdirAll(filepath.Dir(job.Dest), 0755); err != nil {
		return "", 0, transferFailed(err)
	}
	tmp := job.Dest + "." + uuid.NewString() + ".part"
	f, err := d.fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", 0, transferFailed(err)
	}

	h := sha256.New()
	src := &countingReader{r: rc, id: job.ID, total: total, progress: d.progress}
	n, err := io.Copy(io.MultiWriter(f, h), src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		d.fs.Remove(tmp)
		return "", 0, retry.Retryable(transferFailed(err))
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if sum != job.Checksum {
		d.fs.Remove(tmp)
		return "", 0, &Error{
			Filename: job.Filename,
			Kind:     ErrChecksumMismatch,
			Err:      errors.Errorf("expected %s, got %s", job.Checksum, sum),
		}
	}

	if err := d.fs.Rename(tmp, job.Dest); err != nil {
		d.fs.Remove(tmp)
		return "", 0, transferFailed(err)
	}
	return sum, n, nil
}

type countingReader struct {
	r        io.Reader
	id       string
	done     int64
	total    int64
	progress Progress
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.done += int64(n)
		if c.progress != nil {
			c.progress.ReportProgress(c.id, c.done, c.total)
		}
	}
	return n, err
}
