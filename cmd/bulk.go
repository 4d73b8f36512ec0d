// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sfkit/cli/internal/bulk"
	"sfkit/cli/internal/sqlsource"
	"sfkit/cli/internal/transport"
)

var (
	bulkOperation  string
	bulkObject     string
	bulkExternalID string
	bulkSerial     bool
	bulkZip        bool
	bulkAssignment string

	bulkFile  string
	bulkSQL   string
	bulkDSN   string
	bulkNull  string
	bulkClose bool
	bulkGzip  bool

	bulkRequest  bool
	bulkResultID string
	bulkOutput   string
	bulkInterval time.Duration
)

// bulkCmd groups the bulk ingest job commands.
var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Create and drive bulk ingest jobs",
	Long: `The bulk commands drive asynchronous bulk ingest jobs: create a job, add one
or more batches of CSV data, close it and wait until every batch is processed.
Batch data comes from a file or from a PostgreSQL query whose columns are
aliased to the object's field names.`,
	Example: `  job=$(sfkit bulk create --operation insert --object Contact)
  sfkit bulk add "$job" --sql "SELECT first_name AS FirstName, last_name AS LastName FROM people" --close
  sfkit bulk wait "$job"`,
}

var bulkCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a job and print its ID",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, tr, err := bulkController()
		if err != nil {
			return err
		}
		job, err := ctl.CreateJob(cmd.Context(), jobRequestFromFlags())
		if err != nil {
			return networkError(err, "creating the job", tr.Session().InstanceURL)
		}
		fmt.Println(job.ID)
		return nil
	},
}

func jobRequestFromFlags() bulk.JobRequest {
	return bulk.JobRequest{
		Operation:        bulk.Operation(bulkOperation),
		Object:           bulkObject,
		ExternalIDField:  bulkExternalID,
		AssignmentRuleID: bulkAssignment,
		SerialMode:       bulkSerial,
		ZipAttachment:    bulkZip,
	}
}

var bulkAddCmd = &cobra.Command{
	Use:   "add <job-id>",
	Short: "Upload one batch from a file or a SQL query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (bulkFile == "") == (bulkSQL == "") {
			return fmt.Errorf("exactly one of --file or --sql is required")
		}
		ctl, tr, err := bulkController()
		if err != nil {
			return err
		}
		ctl.Gzip = bulkGzip
		ct := bulk.CSV
		if bulkZip {
			ct = bulk.ZipCSV
		}

		var batch bulk.Batch
		if bulkFile != "" {
			f, err := os.Open(bulkFile)
			if err != nil {
				return err
			}
			defer f.Close()
			batch, err = ctl.AddBatch(cmd.Context(), args[0], f, ct, bulkClose)
			if err != nil {
				return networkError(err, "uploading the batch", tr.Session().InstanceURL)
			}
		} else {
			if batch, err = addSQLBatch(cmd, ctl, args[0]); err != nil {
				return networkError(err, "uploading the batch", tr.Session().InstanceURL)
			}
		}
		pterm.Success.Printf("Batch %s %s\n", batch.ID, batch.State)
		if bulkClose {
			pterm.Info.Printf("Job %s closed\n", args[0])
		}
		return nil
	},
}

// addSQLBatch streams query results into the batch upload as they are read.
func addSQLBatch(cmd *cobra.Command, ctl *bulk.Controller, jobID string) (bulk.Batch, error) {
	dsn, source, err := resolveDSN(bulkDSN)
	if err != nil {
		return bulk.Batch{}, err
	}
	if dsn == "" {
		return bulk.Batch{}, fmt.Errorf("no source database; pass --dsn or run 'sfkit connect'")
	}
	logger.Debug("batch source", "from", source)

	pool, err := sqlsource.Open(cmd.Context(), dsn)
	if err != nil {
		return bulk.Batch{}, err
	}
	defer pool.Close()
	src := sqlsource.New(pool, logger)
	src.Null = bulkNull

	pr, pw := io.Pipe()
	g, ctx := errgroup.WithContext(cmd.Context())
	var rows int64
	g.Go(func() error {
		n, err := src.WriteCSV(ctx, pw, bulkSQL)
		rows = n
		pw.CloseWithError(err)
		return err
	})
	var batch bulk.Batch
	g.Go(func() error {
		var err error
		batch, err = ctl.AddBatch(ctx, jobID, pr, bulk.CSV, bulkClose)
		pr.CloseWithError(err)
		return err
	})
	if err := g.Wait(); err != nil {
		return batch, err
	}
	logger.Info("batch uploaded", "job_id", jobID, "batch_id", batch.ID, "rows", rows)
	return batch, nil
}

var bulkStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a job and its batches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, tr, err := bulkController()
		if err != nil {
			return err
		}
		job, err := ctl.GetJob(cmd.Context(), args[0])
		if err != nil {
			return networkError(err, "reading the job", tr.Session().InstanceURL)
		}
		return renderJob(job)
	},
}

var bulkCloseCmd = &cobra.Command{
	Use:   "close <job-id>",
	Short: "Close a job; queued batches still run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setJobState(cmd, args[0], false)
	},
}

var bulkAbortCmd = &cobra.Command{
	Use:   "abort <job-id>",
	Short: "Abort a job; unprocessed batches are dropped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setJobState(cmd, args[0], true)
	},
}

func setJobState(cmd *cobra.Command, jobID string, abort bool) error {
	ctl, tr, err := bulkController()
	if err != nil {
		return err
	}
	var job bulk.Job
	if abort {
		job, err = ctl.AbortJob(cmd.Context(), jobID)
	} else {
		job, err = ctl.CloseJob(cmd.Context(), jobID)
	}
	if err != nil {
		return networkError(err, "updating the job", tr.Session().InstanceURL)
	}
	pterm.Success.Printf("Job %s %s\n", job.ID, job.State)
	return nil
}

var bulkResultsCmd = &cobra.Command{
	Use:   "results <job-id> <batch-id>",
	Short: "Download the results or request data of a batch",
	Long: `The results command streams the per-record results of a completed batch, or
with --request the data that was uploaded. Query batches may have several
result sets; without --result-id their IDs are listed instead.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, tr, err := bulkController()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		kind := bulk.ResultResult
		if bulkRequest {
			kind = bulk.ResultRequest
		}

		job, err := ctl.GetJob(ctx, args[0])
		if err != nil {
			return networkError(err, "reading the job", tr.Session().InstanceURL)
		}
		if kind == bulk.ResultResult && bulkResultID == "" && (job.Operation == bulk.Query || job.Operation == bulk.QueryAll) {
			ids, err := ctl.GetResultIDs(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		}

		rc, err := ctl.DownloadBatchResults(ctx, args[0], args[1], kind, bulkResultID)
		if err != nil {
			return networkError(err, "downloading results", tr.Session().InstanceURL)
		}
		defer rc.Close()
		return copyOut(rc, bulkOutput)
	},
}

var bulkWaitCmd = &cobra.Command{
	Use:   "wait <job-id>",
	Short: "Poll a job until every batch is processed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, tr, err := bulkController()
		if err != nil {
			return err
		}
		interval := bulkInterval
		if interval <= 0 {
			interval = cfg.PollInterval
		}

		var latest pterm.TableData
		latestCh := make(chan pterm.TableData, 1)
		spin := startAreaSpinner(func(frame string) string {
			select {
			case latest = <-latestCh:
			default:
			}
			if latest == nil {
				return frame + " Waiting for job " + args[0]
			}
			s, _ := pterm.DefaultTable.WithData(latest).Srender()
			return frame + " Waiting for job " + args[0] + "\n" + s
		})
		job, err := ctl.WaitForJob(cmd.Context(), args[0], interval, func(j bulk.Job) {
			logger.Debug("bulk job polled", "job_id", j.ID, "state", j.State,
				"completed", j.NumberBatchesCompleted, "total", j.NumberBatchesTotal)
			select {
			case <-latestCh:
			default:
			}
			latestCh <- jobProgress(j)
		})
		spin.Stop()
		if err != nil {
			return networkError(err, "waiting for the job", tr.Session().InstanceURL)
		}
		return renderJob(job)
	},
}

func init() {
	rootCmd.AddCommand(bulkCmd)
	bulkCmd.AddCommand(bulkCreateCmd, bulkAddCmd, bulkStatusCmd, bulkCloseCmd, bulkAbortCmd, bulkResultsCmd, bulkWaitCmd)

	bulkCreateCmd.Flags().StringVar(&bulkOperation, "operation", "", "insert, update, upsert, delete, hardDelete, query or queryAll")
	bulkCreateCmd.Flags().StringVar(&bulkObject, "object", "", "Object API name, e.g. Contact")
	bulkCreateCmd.Flags().StringVar(&bulkExternalID, "external-id", "", "External ID field (upsert only)")
	bulkCreateCmd.Flags().StringVar(&bulkAssignment, "assignment-rule", "", "Assignment rule ID applied to created records")
	bulkCreateCmd.Flags().BoolVar(&bulkSerial, "serial", false, "Process batches one at a time")
	bulkCreateCmd.Flags().BoolVar(&bulkZip, "zip", false, "Batches are zip files with request.txt and attachments")
	_ = bulkCreateCmd.MarkFlagRequired("operation")
	_ = bulkCreateCmd.MarkFlagRequired("object")

	bulkAddCmd.Flags().StringVarP(&bulkFile, "file", "f", "", "CSV (or zip with --zip) file to upload")
	bulkAddCmd.Flags().StringVar(&bulkSQL, "sql", "", "PostgreSQL query producing the batch rows")
	bulkAddCmd.Flags().StringVar(&bulkDSN, "dsn", "", "Source database (default: SFKIT_DSN, DATABASE_URL or 'sfkit connect')")
	bulkAddCmd.Flags().StringVar(&bulkNull, "null", "", "Value written for SQL NULL; use "+sqlsource.NullValue+" to clear fields")
	bulkAddCmd.Flags().BoolVar(&bulkClose, "close", false, "Close the job after this batch")
	bulkAddCmd.Flags().BoolVar(&bulkZip, "zip", false, "The file is a zip batch")
	bulkAddCmd.Flags().BoolVar(&bulkGzip, "gzip", false, "Compress the upload with Content-Encoding: gzip")
	bulkAddCmd.MarkFlagsMutuallyExclusive("file", "sql")
	bulkAddCmd.MarkFlagsMutuallyExclusive("zip", "sql")

	bulkResultsCmd.Flags().BoolVar(&bulkRequest, "request", false, "Download the uploaded data instead of results")
	bulkResultsCmd.Flags().StringVar(&bulkResultID, "result-id", "", "Result set of a query batch")
	bulkResultsCmd.Flags().StringVarP(&bulkOutput, "output", "o", "", "Write to this file instead of stdout")

	bulkWaitCmd.Flags().DurationVar(&bulkInterval, "interval", 0, "Poll interval (default from config)")
}

func bulkController() (*bulk.Controller, *transport.Transport, error) {
	tr, err := openTransport()
	if err != nil {
		return nil, nil, err
	}
	return bulk.New(tr, logger), tr, nil
}

// copyOut copies r to the file at path, or to stdout when path is empty.
func copyOut(r io.Reader, path string) error {
	if path == "" {
		_, err := io.Copy(os.Stdout, r)
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func jobProgress(j bulk.Job) pterm.TableData {
	return pterm.TableData{
		{"State", string(j.State)},
		{"Batches", fmt.Sprintf("%d/%d completed, %d failed, %d queued, %d in progress",
			j.NumberBatchesCompleted, j.NumberBatchesTotal, j.NumberBatchesFailed,
			j.NumberBatchesQueued, j.NumberBatchesInProgress)},
		{"Records", fmt.Sprintf("%d processed, %d failed", j.NumberRecordsProcessed, j.NumberRecordsFailed)},
	}
}

// renderJob prints the job summary followed by one row per batch.
func renderJob(j bulk.Job) error {
	head := pterm.TableData{
		{"Job", j.ID},
		{"Operation", string(j.Operation) + " " + j.Object},
		{"Mode", j.ConcurrencyMode},
	}
	if err := pterm.DefaultTable.WithData(append(head, jobProgress(j)...)).Render(); err != nil {
		return err
	}
	if len(j.Batches) == 0 {
		return nil
	}
	pterm.Println()
	rows := pterm.TableData{{"Batch", "State", "Processed", "Failed", "Message"}}
	for _, b := range j.Batches {
		rows = append(rows, []string{
			b.ID, string(b.State),
			strconv.FormatInt(b.NumberRecordsProcessed, 10),
			strconv.FormatInt(b.NumberRecordsFailed, 10),
			b.StateMessage,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
