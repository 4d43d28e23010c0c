// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mia-platform/devboard/internal/destination"
	"github.com/mia-platform/devboard/internal/destination/webhook"
	"github.com/mia-platform/devboard/internal/destination/writer"
	"github.com/mia-platform/devboard/internal/server"
)

const (
	boardFileFlagName  = "board-file"
	boardFileFlagShort = "b"
	boardFileFlagUsage = "Path to a YAML file describing environments, partitions and poll intervals."

	outputFlagName    = "output"
	outputFlagShort   = "o"
	outputFlagUsage   = "Output of the rendered cards, one of: json, yaml, webhook"
	defaultOutputFlag = writer.FormatJSON
	outputWebhook     = "webhook"

	timeoutFlagName    = "timeout"
	timeoutFlagUsage   = "Maximum time to wait for every source to complete its first fetch"
	defaultTimeoutFlag = time.Minute

	shutdownTimeout = 10 * time.Second
)

// serveFlags holds the flags for the "serve" command.
type serveFlags struct {
	boardPath string
}

// addFlags adds the cli flags to the cobra command.
func (f *serveFlags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.boardPath, boardFileFlagName, boardFileFlagShort, "", boardFileFlagUsage)
}

// toOptions converts the serve flags to serveOptions.
func (f *serveFlags) toOptions() *serveOptions {
	return &serveOptions{
		boardPath:       f.boardPath,
		sourceGetter:    sourceFromEnvironment,
		serverGetter:    server.NewServer,
		shutdownTimeout: shutdownTimeout,
	}
}

// syncFlags holds the flags for the "sync" command.
type syncFlags struct {
	boardPath string
	output    string
	timeout   time.Duration
}

// addFlags adds the cli flags to the cobra command.
func (f *syncFlags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.boardPath, boardFileFlagName, boardFileFlagShort, "", boardFileFlagUsage)
	cmd.Flags().StringVarP(&f.output, outputFlagName, outputFlagShort, defaultOutputFlag, outputFlagUsage)
	cmd.Flags().DurationVar(&f.timeout, timeoutFlagName, defaultTimeoutFlag, timeoutFlagUsage)
}

// toOptions converts the sync flags to syncOptions enriching it with the passed arguments.
func (f *syncFlags) toOptions(cmd *cobra.Command, args []string) (*syncOptions, error) {
	sender, err := newDestination(cmd, strings.ToLower(f.output))
	if err != nil {
		return nil, err
	}

	cards := make([]string, 0, len(args))
	for _, arg := range args {
		cards = append(cards, strings.ToLower(arg))
	}

	return &syncOptions{
		boardPath:       f.boardPath,
		cards:           cards,
		timeout:         f.timeout,
		destination:     sender,
		sourceGetter:    sourceFromEnvironment,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

// newDestination returns the webhook destination or a writer on the command output.
func newDestination(cmd *cobra.Command, output string) (destination.Sender, error) {
	if output == outputWebhook {
		return webhook.NewDestination()
	}
	return writer.NewDestination(cmd.OutOrStdout(), output)
}
