// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package archive assembles remote files into one zip stream.
//
// Files are fetched one at a time and copied straight into the outgoing
// stream, so memory stays bounded no matter how large the set is. The exact
// archive length is known before the first byte is written. The producer
// blocks whenever the consumer is not reading. When the consumer closes the
// stream early, the download in flight is cancelled, nothing more is fetched
// and the archive is left without its trailer.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	sferrors "sfkit/cli/internal/errors"
)

const (
	// DefaultFileTimeout bounds the transfer of a single file.
	DefaultFileTimeout = 5 * time.Minute
	// DefaultMaxBytes is the ceiling on the declared size of a file set.
	DefaultMaxBytes int64 = 2 << 30

	chunkSize = 32 << 10
)

// Config holds configuration for creating an Engine.
type Config struct {
	Fetcher Fetcher
	// MaxBytes caps the summed declared size. Zero means DefaultMaxBytes.
	MaxBytes int64
	// FileTimeout bounds each file. Zero means DefaultFileTimeout.
	FileTimeout time.Duration
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// Now stamps entry modification times. If nil, time.Now is used.
	Now func() time.Time
}

// Engine builds archives. It is safe for concurrent use; each call to
// PackageFiles runs its own producer.
type Engine struct {
	fetcher     Fetcher
	maxBytes    int64
	fileTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
	// zip64Above is the total size past which the zip64 layout is used.
	zip64Above uint64
}

// New returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Fetcher == nil {
		return nil, sferrors.New(sferrors.Config, "archive: fetcher is required")
	}
	e := &Engine{
		fetcher:     cfg.Fetcher,
		maxBytes:    cfg.MaxBytes,
		fileTimeout: cfg.FileTimeout,
		logger:      cfg.Logger,
		now:         cfg.Now,
		zip64Above:  max32,
	}
	if e.maxBytes <= 0 {
		e.maxBytes = DefaultMaxBytes
	}
	if e.fileTimeout <= 0 {
		e.fileTimeout = DefaultFileTimeout
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// Package is an archive being produced.
type Package struct {
	// Stream yields the archive bytes. Closing it before EOF cancels the
	// remaining work.
	Stream   io.ReadCloser
	FileName string
	// Size is the exact length Stream will yield when it completes.
	Size int64
}

// PackageFiles validates the file set and starts streaming the archive. It
// returns before any file is fetched; errors during assembly surface as read
// errors on the stream.
func (e *Engine) PackageFiles(ctx context.Context, files []FileDescriptor, archiveName string) (*Package, error) {
	var total int64
	sizes := make([]int64, len(files))
	for i, f := range files {
		if err := f.Validate(); err != nil {
			return nil, sferrors.Wrap(sferrors.Validation, fmt.Sprintf("archive: file %d", i), err)
		}
		sizes[i] = f.Size
		// total stays <= maxBytes, so the sum cannot overflow.
		if f.Size > e.maxBytes-total {
			ArchivesTotal.WithLabelValues("rejected").Inc()
			return nil, sferrors.Newf(sferrors.SizeLimit,
				"archive: %d files exceed the %d byte limit at file %d (%s)", len(files), e.maxBytes, i, f.FileName)
		}
		total += f.Size
	}

	names := uniqueNames(files)
	for i, name := range names {
		if len(name) > max16 {
			return nil, sferrors.Newf(sferrors.Validation,
				"archive: file %d: name is %d bytes, the limit is %d", i, len(name), max16)
		}
	}
	zip64 := useZip64(total, len(files), e.zip64Above)
	size := archiveSize(names, sizes, zip64)
	if !zip64 && size > max32 {
		ArchivesTotal.WithLabelValues("rejected").Inc()
		return nil, sferrors.Newf(sferrors.ProtocolShape,
			"archive: %d bytes of standard zip cannot be addressed with 32-bit offsets", size)
	}

	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	s := &stream{PipeReader: pr, cancel: cancel}

	job := &assembly{
		engine: e,
		files:  files,
		names:  names,
		zip:    newZipStream(pw, zip64, e.now()),
		pipe:   pw,
		stream: s,
	}
	go job.run(ctx, cancel)

	if !strings.HasSuffix(strings.ToLower(archiveName), ".zip") {
		archiveName += ".zip"
	}
	e.logger.Debug("archive started", "name", archiveName, "files", len(files), "bytes", size, "zip64", zip64)
	return &Package{Stream: s, FileName: archiveName, Size: size}, nil
}

// stream is the consumer side of the pipe.
type stream struct {
	*io.PipeReader
	cancel context.CancelFunc
	closed atomic.Bool
}

func (s *stream) Close() error {
	s.closed.Store(true)
	s.cancel()
	return s.PipeReader.Close()
}

type assembly struct {
	engine *Engine
	files  []FileDescriptor
	names  []string
	zip    *zipStream
	pipe   *io.PipeWriter
	stream *stream
}

func (a *assembly) run(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	log := a.engine.logger

	// unblock a pending pipe write when the caller's context ends
	stop := context.AfterFunc(ctx, func() {
		if !a.stream.closed.Load() {
			a.pipe.CloseWithError(sferrors.Wrap(sferrors.Canceled, "archive: canceled", context.Cause(ctx)))
		}
	})
	defer stop()

	err := a.assemble(ctx)
	switch {
	case err == nil:
		ArchivesTotal.WithLabelValues("completed").Inc()
		log.Debug("archive completed", "files", len(a.files), "bytes", a.zip.written)
		_ = a.pipe.Close()
	case a.stream.closed.Load() || errors.Is(err, io.ErrClosedPipe):
		ArchivesTotal.WithLabelValues("canceled").Inc()
		log.Debug("archive consumer went away", "bytes", a.zip.written)
		_ = a.pipe.CloseWithError(io.ErrClosedPipe)
	case sferrors.IsKind(err, sferrors.Canceled):
		ArchivesTotal.WithLabelValues("canceled").Inc()
		log.Debug("archive canceled", "bytes", a.zip.written)
		_ = a.pipe.CloseWithError(err)
	default:
		ArchivesTotal.WithLabelValues("aborted").Inc()
		log.Error("archive aborted", "error", err, "bytes", a.zip.written)
		_ = a.pipe.CloseWithError(err)
	}
}

func (a *assembly) assemble(ctx context.Context) error {
	buf := make([]byte, chunkSize)
	for i, f := range a.files {
		if err := ctx.Err(); err != nil {
			return canceled(ctx)
		}
		if err := a.zip.begin(a.names[i]); err != nil {
			return err
		}
		if err := a.copyFile(ctx, f, a.names[i], buf); err != nil {
			return err
		}
		if err := a.zip.end(); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return canceled(ctx)
	}
	return a.zip.close()
}

func (a *assembly) copyFile(parent context.Context, f FileDescriptor, name string, buf []byte) error {
	timeout := a.engine.fileTimeout
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	fail := func(err error) error {
		if parent.Err() != nil {
			return canceled(parent)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return sferrors.Wrap(sferrors.Timeout,
				fmt.Sprintf("archive: download of %q exceeded %s", name, timeout), err)
		}
		return err
	}

	body, err := a.engine.fetcher.Fetch(ctx, f.URL)
	if err != nil {
		return fail(fmt.Errorf("archive: fetch %q: %w", name, err))
	}
	defer body.Close()

	var received int64
	for {
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		n, rerr := body.Read(buf)
		if n > 0 {
			received += int64(n)
			if received > f.Size {
				return sferrors.Newf(sferrors.ProtocolShape,
					"archive: %q is larger than its declared %d bytes", name, f.Size)
			}
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			if _, err := a.zip.Write(buf[:n]); err != nil {
				return fail(err)
			}
			BytesStreamed.Add(float64(n))
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fail(fmt.Errorf("archive: read %q: %w", name, rerr))
		}
	}
	if received != f.Size {
		return sferrors.Newf(sferrors.ProtocolShape,
			"archive: %q has %d bytes, declared %d", name, received, f.Size)
	}
	return nil
}

func canceled(ctx context.Context) error {
	return sferrors.Wrap(sferrors.Canceled, "archive: canceled", context.Cause(ctx))
}
