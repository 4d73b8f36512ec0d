// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sfkit/cli/internal/archive"
	"sfkit/cli/internal/backend"
	"sfkit/cli/internal/session"
	"sfkit/cli/internal/terminal"
)

var (
	downloadManifest string
	downloadSOQL     string
	downloadOutput   string
)

// downloadCmd packages remote files into one zip archive.
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a set of files into one zip archive",
	Long: `The download command fetches a set of org files and writes them into a single
zip archive without holding them in memory. The file set comes from a manifest
(YAML, JSON or CSV with url,size,fileName,extension columns) or from a SOQL
query over ContentVersion; the query must select Id, Title, FileExtension and
ContentSize.

Duplicate names get " (n)" appended. The declared sizes must match what the
org returns; a mismatch aborts the archive.`,
	Example: `  sfkit download --manifest files.yaml -o files.zip
  sfkit download --soql "SELECT Id, Title, FileExtension, ContentSize FROM ContentVersion WHERE IsLatest = true" -o docs.zip`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (downloadManifest == "") == (downloadSOQL == "") {
			return fmt.Errorf("exactly one of --manifest or --soql is required")
		}
		tr, err := openTransport()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var files []archive.FileDescriptor
		if downloadManifest != "" {
			f, err := os.Open(downloadManifest)
			if err != nil {
				return err
			}
			files, err = parseManifest(f, filepath.Ext(downloadManifest))
			f.Close()
			if err != nil {
				return fmt.Errorf("manifest %s: %w", downloadManifest, err)
			}
		} else {
			res, err := backend.New(tr).Query(ctx, downloadSOQL, true)
			if err != nil {
				return networkError(err, "listing files", tr.Session().InstanceURL)
			}
			if files, err = contentVersionFiles(tr.Session(), res.Records); err != nil {
				return err
			}
		}
		if len(files) == 0 {
			pterm.Info.Println("No files to download")
			return nil
		}

		eng, err := archive.New(archive.Config{
			Fetcher:     archive.TransportFetcher{Transport: tr},
			MaxBytes:    cfg.MaxDownloadBytes,
			FileTimeout: cfg.FileTimeout,
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		name := "files"
		if downloadOutput != "" {
			name = strings.TrimSuffix(filepath.Base(downloadOutput), filepath.Ext(downloadOutput))
		}
		pkg, err := eng.PackageFiles(ctx, files, name)
		if err != nil {
			return err
		}
		defer pkg.Stream.Close()

		out := downloadOutput
		if out == "" {
			out = pkg.FileName
		}
		if err := writeArchive(pkg, out); err != nil {
			_ = os.Remove(out)
			return networkError(err, "downloading files", tr.Session().InstanceURL)
		}
		pterm.Success.Printf("%d files, %s written to %s\n", len(files), formatBytes(pkg.Size), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringVarP(&downloadManifest, "manifest", "m", "", "File listing the files to download")
	downloadCmd.Flags().StringVar(&downloadSOQL, "soql", "", "ContentVersion query selecting the files")
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "files.zip", "Archive path")
	downloadCmd.MarkFlagsMutuallyExclusive("manifest", "soql")
}

// writeArchive copies the archive to path, with a progress bar on
// interactive terminals.
func writeArchive(pkg *archive.Package, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	var w io.Writer = f
	var bar *pterm.ProgressbarPrinter
	if pkg.Size > 0 && terminal.IsInteractive() {
		cursor.Hide()
		defer cursor.Show()
		bar, _ = pterm.DefaultProgressbar.
			WithTotal(int((pkg.Size + 1023) / 1024)).
			WithTitle(pkg.FileName).
			WithRemoveWhenDone(true).
			Start()
		if bar != nil {
			w = &progressWriter{w: f, bar: bar}
		}
	}

	n, err := io.Copy(w, pkg.Stream)
	if bar != nil {
		_, _ = bar.Stop()
	}
	if err != nil {
		f.Close()
		return err
	}
	if n != pkg.Size {
		f.Close()
		return fmt.Errorf("archive is %d bytes, expected %d", n, pkg.Size)
	}
	return f.Close()
}

// progressWriter advances bar by KiB as bytes are written.
type progressWriter struct {
	w       io.Writer
	bar     *pterm.ProgressbarPrinter
	pending int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.pending += int64(n)
	if kib := p.pending / 1024; kib > 0 {
		p.bar.Add(int(kib))
		p.pending %= 1024
	}
	return n, err
}

// parseManifest reads file descriptors. ext selects CSV for ".csv"; other
// inputs are decoded as YAML, which also accepts JSON.
func parseManifest(r io.Reader, ext string) ([]archive.FileDescriptor, error) {
	if strings.EqualFold(ext, ".csv") {
		return parseCSVManifest(r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var files []archive.FileDescriptor
	if len(bytes.TrimSpace(data)) == 0 {
		return files, nil
	}
	if err := yaml.Unmarshal(data, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func parseCSVManifest(r io.Reader) ([]archive.FileDescriptor, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"url", "size", "filename"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}
	field := func(rec []string, name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var files []archive.FileDescriptor
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		size, err := strconv.ParseInt(field(rec, "size"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid size %q", line, field(rec, "size"))
		}
		files = append(files, archive.FileDescriptor{
			URL:       field(rec, "url"),
			Size:      size,
			FileName:  field(rec, "filename"),
			Extension: field(rec, "extension"),
		})
	}
}

// contentVersionFiles maps ContentVersion records to descriptors of their
// VersionData resources.
func contentVersionFiles(sess session.Session, records []map[string]any) ([]archive.FileDescriptor, error) {
	files := make([]archive.FileDescriptor, 0, len(records))
	for i, rec := range records {
		id, _ := rec["Id"].(string)
		title, _ := rec["Title"].(string)
		ext, _ := rec["FileExtension"].(string)
		size, ok := rec["ContentSize"].(float64)
		if id == "" || !ok {
			return nil, fmt.Errorf("record %d: query must select Id, Title, FileExtension and ContentSize", i)
		}
		files = append(files, archive.FileDescriptor{
			URL:       sess.RESTPath() + "/sobjects/ContentVersion/" + id + "/VersionData",
			Size:      int64(size),
			FileName:  firstNonEmpty(title, id),
			Extension: ext,
		})
	}
	return files, nil
}
