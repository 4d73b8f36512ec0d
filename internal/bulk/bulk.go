// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package bulk drives the asynchronous bulk ingest API: a job is created,
// batches of CSV (or zipped CSV) data are queued against it, the job is
// closed, and the caller polls until every batch is terminal before fetching
// per-batch results.
//
// Records that fail inside a completed batch are not errors here. They are
// reported through the batch and job counters and the caller decides what a
// partial failure means. Only transport and protocol failures are returned
// as errors.
package bulk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	sferrors "sfkit/cli/internal/errors"
	"sfkit/cli/internal/session"
	"sfkit/cli/internal/transport"
)

const xmlContentType = "application/xml; charset=UTF-8"

// Doer executes platform requests for the current session.
type Doer interface {
	Do(ctx context.Context, req *transport.Request) (*transport.Response, error)
	Session() session.Session
}

// Controller issues bulk ingest calls over a transport.
type Controller struct {
	tr     Doer
	logger *slog.Logger

	// Gzip sends batch data with Content-Encoding: gzip.
	Gzip bool
}

// New returns a Controller. A nil logger falls back to slog.Default().
func New(tr Doer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{tr: tr, logger: logger}
}

func (c *Controller) request(method, path string) *transport.Request {
	return &transport.Request{
		Method:   method,
		URL:      path,
		BasePath: c.tr.Session().AsyncPath(),
		Output:   transport.OutputXML,
	}
}

func (c *Controller) xml(ctx context.Context, req *transport.Request, root string) (any, error) {
	resp, err := c.tr.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	node, ok := resp.Tree[root]
	if !ok {
		return nil, sferrors.Newf(sferrors.ProtocolShape, "expected <%s> response", root)
	}
	return node, nil
}

// CreateJob creates a job and returns its snapshot in state Open.
func (c *Controller) CreateJob(ctx context.Context, jr JobRequest) (Job, error) {
	if err := jr.Validate(); err != nil {
		return Job{}, sferrors.Wrap(sferrors.Validation, "bulk: invalid job request", err)
	}
	req := c.request(http.MethodPost, "/job")
	req.Body = jobBody(jr)
	req.RawBody = true
	req.ContentType = xmlContentType

	node, err := c.xml(ctx, req, "jobInfo")
	if err != nil {
		return Job{}, fmt.Errorf("bulk: create job: %w", err)
	}
	job, err := jobFromTree(node)
	if err != nil {
		return Job{}, fmt.Errorf("bulk: create job: %w", err)
	}
	c.logger.Debug("bulk job created", "job_id", job.ID, "operation", job.Operation, "object", job.Object)
	return job, nil
}

// AddBatch uploads one batch of data. body is streamed, never buffered. When
// closeJob is set the job is closed right after the batch is accepted.
func (c *Controller) AddBatch(ctx context.Context, jobID string, body io.Reader, ct ContentType, closeJob bool) (Batch, error) {
	req := c.request(http.MethodPost, "/job/"+url.PathEscape(jobID)+"/batch")
	req.Body = body
	req.RawBody = true
	req.ContentType = ct.mime()
	req.Gzip = c.Gzip

	node, err := c.xml(ctx, req, "batchInfo")
	if err != nil {
		return Batch{}, fmt.Errorf("bulk: add batch to %s: %w", jobID, err)
	}
	batch, err := batchFromTree(node)
	if err != nil {
		return Batch{}, fmt.Errorf("bulk: add batch to %s: %w", jobID, err)
	}
	c.logger.Debug("bulk batch queued", "job_id", jobID, "batch_id", batch.ID, "state", batch.State)

	if closeJob {
		if _, err := c.CloseJob(ctx, jobID); err != nil {
			return batch, err
		}
	}
	return batch, nil
}

// GetJob returns the job snapshot together with all of its batches. The two
// reads run concurrently.
func (c *Controller) GetJob(ctx context.Context, jobID string) (Job, error) {
	var (
		jobNode  any
		listNode any
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := c.xml(gctx, c.request(http.MethodGet, "/job/"+url.PathEscape(jobID)), "jobInfo")
		jobNode = n
		return err
	})
	g.Go(func() error {
		n, err := c.xml(gctx, c.request(http.MethodGet, "/job/"+url.PathEscape(jobID)+"/batch"), "batchInfoList")
		listNode = n
		return err
	})
	if err := g.Wait(); err != nil {
		return Job{}, fmt.Errorf("bulk: get job %s: %w", jobID, err)
	}

	job, err := jobFromTree(jobNode)
	if err != nil {
		return Job{}, fmt.Errorf("bulk: get job %s: %w", jobID, err)
	}
	items := listItems(listNode, "batchInfo")
	job.Batches = make([]Batch, 0, len(items))
	for _, item := range items {
		b, err := batchFromTree(item)
		if err != nil {
			return Job{}, fmt.Errorf("bulk: get job %s: %w", jobID, err)
		}
		job.Batches = append(job.Batches, b)
	}
	return job, nil
}

// GetBatch returns one batch snapshot.
func (c *Controller) GetBatch(ctx context.Context, jobID, batchID string) (Batch, error) {
	path := "/job/" + url.PathEscape(jobID) + "/batch/" + url.PathEscape(batchID)
	node, err := c.xml(ctx, c.request(http.MethodGet, path), "batchInfo")
	if err != nil {
		return Batch{}, fmt.Errorf("bulk: get batch %s: %w", batchID, err)
	}
	b, err := batchFromTree(node)
	if err != nil {
		return Batch{}, fmt.Errorf("bulk: get batch %s: %w", batchID, err)
	}
	return b, nil
}

// CloseJob moves the job to Closed; queued batches still run.
func (c *Controller) CloseJob(ctx context.Context, jobID string) (Job, error) {
	return c.setState(ctx, jobID, JobClosed)
}

// AbortJob moves the job to Aborted; unprocessed batches are dropped.
func (c *Controller) AbortJob(ctx context.Context, jobID string) (Job, error) {
	return c.setState(ctx, jobID, JobAborted)
}

func (c *Controller) setState(ctx context.Context, jobID string, state JobState) (Job, error) {
	req := c.request(http.MethodPost, "/job/"+url.PathEscape(jobID))
	req.Body = stateBody(state)
	req.RawBody = true
	req.ContentType = xmlContentType

	node, err := c.xml(ctx, req, "jobInfo")
	if err != nil {
		return Job{}, fmt.Errorf("bulk: set job %s %s: %w", jobID, state, err)
	}
	job, err := jobFromTree(node)
	if err != nil {
		return Job{}, fmt.Errorf("bulk: set job %s %s: %w", jobID, state, err)
	}
	c.logger.Debug("bulk job state changed", "job_id", jobID, "state", job.State)
	return job, nil
}

// GetResultIDs lists the result sets of a completed batch.
func (c *Controller) GetResultIDs(ctx context.Context, jobID, batchID string) ([]string, error) {
	path := "/job/" + url.PathEscape(jobID) + "/batch/" + url.PathEscape(batchID) + "/result"
	node, err := c.xml(ctx, c.request(http.MethodGet, path), "result-list")
	if err != nil {
		return nil, fmt.Errorf("bulk: list results of %s: %w", batchID, err)
	}
	items := listItems(node, "result")
	ids := make([]string, 0, len(items))
	for _, it := range items {
		id, ok := it.(string)
		if !ok {
			return nil, sferrors.Newf(sferrors.ProtocolShape, "bulk: unexpected result id %T", it)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DownloadBatchResults streams the request data or results of a batch. A
// non-empty resultID selects one result set of a query batch. The caller
// must close the returned stream.
func (c *Controller) DownloadBatchResults(ctx context.Context, jobID, batchID string, kind ResultKind, resultID string) (io.ReadCloser, error) {
	if kind != ResultRequest && kind != ResultResult {
		return nil, sferrors.Newf(sferrors.Validation, "bulk: unknown result kind %q", kind)
	}
	path := "/job/" + url.PathEscape(jobID) + "/batch/" + url.PathEscape(batchID) + "/" + string(kind)
	if kind == ResultResult && resultID != "" {
		path += "/" + url.PathEscape(resultID)
	}
	req := c.request(http.MethodGet, path)
	req.Output = transport.OutputStream

	resp, err := c.tr.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bulk: download %s of %s: %w", kind, batchID, err)
	}
	return resp.Stream, nil
}

// WaitForJob polls the job every interval until Done reports true.
func (c *Controller) WaitForJob(ctx context.Context, jobID string, interval time.Duration, progress func(Job)) (Job, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := c.GetJob(ctx, jobID)
		if err != nil {
			return Job{}, err
		}
		if progress != nil {
			progress(job)
		}
		if job.Done() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, sferrors.Wrap(sferrors.Canceled, "bulk: wait for job "+jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}
