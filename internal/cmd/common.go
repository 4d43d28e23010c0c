// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mia-platform/devboard/internal/board"
	"github.com/mia-platform/devboard/internal/server"
	"github.com/mia-platform/devboard/internal/source"
	azuredevops "github.com/mia-platform/devboard/internal/source/azure-devops"
	"github.com/mia-platform/devboard/internal/telemetry"
)

var (
	errInvalidCard    = errors.New("invalid card name provided")
	errInvalidTimeout = errors.New("timeout must be greater than zero")
	errSyncTimeout    = errors.New("sources not synchronized in time")
	errSourcesFailed  = errors.New("sources failed to synchronize")

	// availableCards holds the rendered cards and their description for command completion
	// and help messages.
	availableCards = map[string]string{
		board.CardPullRequests: "pull requests with their review state",
		board.CardPipelines:    "most recent builds",
		board.CardEnvironments: "latest build and release of every environment",
		board.CardTasks:        "recent work items grouped by assignee",
	}
)

// sourceGetterFunc returns the Azure DevOps source used by the board.
type sourceGetterFunc func(ctx context.Context) (source.DevOps, error)

// serverGetterFunc returns the HTTP server exposing the board.
type serverGetterFunc func(ctx context.Context, cfg *server.Config, b server.Board, provider *telemetry.Provider) (server.Server, error)

// handleError will do custom print error handling based on the type of error received.
// it will return nil if the command must return 0 exit code, otherwise it will return
// the original error.
func handleError(cmd *cobra.Command, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errInvalidCard):
		cmd.PrintErrln(err)
		_ = cmd.Usage() // do not check error as we cannot do much about it
		return err
	default:
		cmd.PrintErrln(err)
		return err
	}
}

func validArgsFunc(cards map[string]string) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var comps []string
		for name, description := range cards {
			if slices.Contains(args, name) {
				continue
			}
			if strings.HasPrefix(name, toComplete) {
				comps = append(comps, cobra.CompletionWithDesc(name, description))
			}
		}

		slices.Sort(comps)
		return comps, cobra.ShellCompDirectiveNoFileComp
	}
}

// sourceFromEnvironment returns the Azure DevOps source configured by the environment.
func sourceFromEnvironment(ctx context.Context) (source.DevOps, error) {
	devOps, err := azuredevops.NewSource(ctx)
	if err != nil {
		return nil, err
	}
	return devOps, nil
}
