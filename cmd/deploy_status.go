// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"sync/atomic"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	sferrors "sfkit/cli/internal/errors"
	"sfkit/cli/internal/metadata"
)

var (
	deployDetails bool
	deployWait    bool
)

// deployStatusCmd reports the status of an asynchronous metadata deploy.
var deployStatusCmd = &cobra.Command{
	Use:   "deploy-status <deploy-id>",
	Short: "Show the status of a metadata deploy",
	Long: `The deploy-status command calls checkDeployStatus on the metadata API. With
--details the component failures and failing tests are listed. With --wait the
deploy is polled until it is done. The command fails when the deploy did not
succeed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, err := openTransport()
		if err != nil {
			return err
		}
		client := metadata.New(tr)
		ctx := cmd.Context()

		res, err := client.CheckDeployStatus(ctx, args[0], deployDetails)
		if deployWait && err == nil && !res.Done {
			var status atomic.Value
			status.Store(res.Status)
			spin := startAreaSpinner(func(frame string) string {
				return frame + " Deploy " + args[0] + " " + status.Load().(string)
			})
			res, err = waitDeploy(cmd, client, args[0], res, func(r metadata.DeployResult) {
				status.Store(fmt.Sprintf("%s (%d/%d components)", r.Status, r.NumberComponentsDeployed, r.NumberComponentsTotal))
			})
			spin.Stop()
		}
		if err != nil {
			return networkError(err, "checking the deploy", tr.Session().InstanceURL)
		}

		if err := renderDeploy(res); err != nil {
			return err
		}
		if res.Done && !res.Success {
			return sferrors.Newf(sferrors.Validation, "deploy %s %s", res.ID, res.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deployStatusCmd)
	deployStatusCmd.Flags().BoolVar(&deployDetails, "details", false, "Include component failures and test results")
	deployStatusCmd.Flags().BoolVar(&deployWait, "wait", false, "Poll until the deploy is done")
}

func waitDeploy(cmd *cobra.Command, client *metadata.Client, id string, res metadata.DeployResult, progress func(metadata.DeployResult)) (metadata.DeployResult, error) {
	ctx := cmd.Context()
	for !res.Done {
		select {
		case <-ctx.Done():
			return res, sferrors.Wrap(sferrors.Canceled, "wait for deploy "+id, ctx.Err())
		case <-timeAfter(cfg.PollInterval):
		}
		next, err := client.CheckDeployStatus(ctx, id, deployDetails)
		if err != nil {
			return res, err
		}
		res = next
		progress(res)
		logger.Debug("deploy polled", "id", id, "status", res.Status,
			"components", res.NumberComponentsDeployed, "total", res.NumberComponentsTotal)
	}
	return res, nil
}

func renderDeploy(res metadata.DeployResult) error {
	rows := pterm.TableData{
		{"Deploy", res.ID},
		{"Status", res.Status},
		{"Components", fmt.Sprintf("%d/%d deployed, %d errors", res.NumberComponentsDeployed, res.NumberComponentsTotal, res.NumberComponentErrors)},
		{"Tests", fmt.Sprintf("%d/%d completed, %d errors", res.NumberTestsCompleted, res.NumberTestsTotal, res.NumberTestErrors)},
	}
	if res.StateDetail != "" {
		rows = append(rows, []string{"Detail", res.StateDetail})
	}
	if res.ErrorMessage != "" {
		rows = append(rows, []string{"Error", res.ErrorMessage})
	}
	if err := pterm.DefaultTable.WithData(rows).Render(); err != nil {
		return err
	}

	if len(res.ComponentFailures) > 0 {
		pterm.Println()
		data := pterm.TableData{{"Type", "Name", "Line", "Problem"}}
		for _, f := range res.ComponentFailures {
			data = append(data, []string{f.ComponentType, f.FullName, fmt.Sprintf("%d:%d", f.LineNumber, f.ColumnNumber), f.Problem})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
	}
	if res.Tests != nil && len(res.Tests.Failures) > 0 {
		pterm.Println()
		data := pterm.TableData{{"Test", "Method", "Message"}}
		for _, f := range res.Tests.Failures {
			data = append(data, []string{f.Name, f.MethodName, f.Message})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}
	return nil
}
