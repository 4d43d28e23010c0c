// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

const (
	serveCmdUsage = "serve"
	serveCmdShort = "poll Azure DevOps and serve the dashboard cards"
	serveCmdLong  = `Poll the configured Azure DevOps project and serve the dashboard cards over HTTP.
	Pull requests, builds, releases and work items are refreshed independently on their
	own interval; every card can be read at /api/v1/cards/NAME and every source can be
	refreshed on demand with POST /api/v1/sources/NAME/refresh.

	The Azure DevOps connection is configured with the AZURE_DEVOPS_* environment
	variables, the HTTP server with HTTP_HOST, HTTP_PORT and METRICS_ENABLED.`

	serveCmdExample = `# Serve the default board
	devboard serve

	# Serve a board with custom environments and intervals
	devboard serve --board-file board.yaml`

	syncCmdUsageTemplate = "sync [%s]..."
	syncCmdShort         = "fetch every source once and print the dashboard cards"
	syncCmdLong          = `Fetch every source once and print the rendered dashboard.
	The command waits until every source completed its first fetch, then writes the
	whole board or only the cards passed as arguments. It exits with an error if a
	source failed or the timeout expired.

	The available cards are:
	- pullrequests: pull requests with their review state
	- pipelines: most recent builds
	- environments: latest build and release of every environment
	- tasks: recent work items grouped by assignee`

	syncCmdExample = `# Print the whole board as JSON
	devboard sync

	# Print the tasks and pipelines cards as YAML
	devboard sync tasks pipelines --output yaml`
)

// ServeCmd returns the Cobra command that serves the board until the context is cancelled.
func ServeCmd() *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:     serveCmdUsage,
		Short:   heredoc.Doc(serveCmdShort),
		Long:    heredoc.Doc(serveCmdLong),
		Example: heredoc.Doc(serveCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args: func(cmd *cobra.Command, args []string) error {
			err := cobra.NoArgs(cmd, args)
			if err != nil {
				cmd.PrintErrln(err)
				_ = cmd.Usage()
			}

			return err
		},
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := flags.toOptions()
			if err := opts.validate(); err != nil {
				return handleError(cmd, err)
			}

			if err := opts.execute(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}

// SyncCmd returns the Cobra command that runs a single synchronization round.
func SyncCmd() *cobra.Command {
	flags := &syncFlags{}
	allCards := slices.Sorted(maps.Keys(availableCards))
	cmd := &cobra.Command{
		Use:     fmt.Sprintf(syncCmdUsageTemplate, strings.Join(allCards, "|")),
		Short:   heredoc.Doc(syncCmdShort),
		Long:    heredoc.Doc(syncCmdLong),
		Example: heredoc.Doc(syncCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		ValidArgsFunction: validArgsFunc(availableCards),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.toOptions(cmd, args)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.validate(); err != nil {
				return handleError(cmd, err)
			}

			if err := opts.execute(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}
