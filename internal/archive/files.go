// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package archive

import (
	"context"
	"io"
	"path"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"sfkit/cli/internal/transport"
)

// FileDescriptor names one remote file to put in an archive.
type FileDescriptor struct {
	// URL is fetched through the Fetcher; platform-relative URLs are fine.
	URL string `json:"url" yaml:"url"`
	// Size is the declared byte length. The archive length is computed from
	// it, so the received body must match exactly.
	Size      int64  `json:"size" yaml:"size"`
	FileName  string `json:"fileName" yaml:"fileName"`
	Extension string `json:"extension,omitempty" yaml:"extension,omitempty"`
}

// Validate checks a descriptor before anything is fetched.
func (f FileDescriptor) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.URL, validation.Required),
		validation.Field(&f.Size, validation.Min(int64(0))),
		validation.Field(&f.FileName, validation.Required),
	)
}

// Fetcher opens the byte stream of one remote file. The stream must stop
// when ctx is done.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) (io.ReadCloser, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	return f(ctx, url)
}

// Streamer is the part of the transport the archive needs.
type Streamer interface {
	Do(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// TransportFetcher fetches files through an authenticated transport, so
// expired sessions are refreshed transparently.
type TransportFetcher struct {
	Transport Streamer
}

func (t TransportFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := t.Transport.Do(ctx, &transport.Request{URL: url, Output: transport.OutputStream})
	if err != nil {
		return nil, err
	}
	return resp.Stream, nil
}

// uniqueNames returns one archive entry name per file, in input order. A
// name already taken gets " (n)" appended to its base, with the smallest n
// that is still free.
func uniqueNames(files []FileDescriptor) []string {
	used := make(map[string]bool, len(files))
	out := make([]string, len(files))
	for i, f := range files {
		base, ext := splitName(f)
		name := join(base, ext)
		for n := 1; used[name]; n++ {
			name = join(base+" ("+strconv.Itoa(n)+")", ext)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func splitName(f FileDescriptor) (base, ext string) {
	base = strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(f.FileName))
	ext = strings.TrimPrefix(strings.TrimSpace(f.Extension), ".")
	if ext == "" {
		if e := path.Ext(base); e != "" && e != base {
			ext = strings.TrimPrefix(e, ".")
			base = strings.TrimSuffix(base, e)
		}
	} else {
		base = strings.TrimSuffix(base, "."+ext)
	}
	if base == "" {
		base = "file"
	}
	return base, ext
}

func join(base, ext string) string {
	if ext == "" {
		return base
	}
	return base + "." + ext
}
