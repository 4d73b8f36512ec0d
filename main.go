// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main is the entry point for the sfkit CLI, a client for CRM
// platform orgs covering bulk ingest, file archives and deploy status.
package main

import (
	"sfkit/cli/cmd"
)

func main() {
	cmd.Execute()
}
