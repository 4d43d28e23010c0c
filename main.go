// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	internalcmd "github.com/mia-platform/devboard/internal/cmd"
	"github.com/mia-platform/devboard/internal/info"
	"github.com/mia-platform/devboard/internal/logger"
)

var (
	// Version is injected at build time via the Makefile.
	Version = info.Version
	// BuildDate is injected at build time via the Makefile.
	BuildDate = info.BuildDate
)

const (
	appShort = "devboard keeps an Azure DevOps dashboard in sync and serves its cards"
	appLong  = `devboard polls pull requests, builds, releases and work items of an Azure DevOps
	project and renders them as dashboard cards. Use serve to keep the cards fresh behind an
	HTTP API, or sync to fetch every source once and print the cards.`

	logLevelFlagName      = "log-level"
	logLevelShortFlagName = "v"
	logLevelEnvName       = "DEVBOARD_LOG_LEVEL"

	versionCmdName = "version"
)

var (
	allLoggerLevels = []string{
		logger.TRACE.String(),
		logger.DEBUG.String(),
		logger.INFO.String(),
		logger.WARN.String(),
		logger.ERROR.String(),
	}
	logLevelFlagUsage = "set the logging level, defaults to $" + logLevelEnvName + " or INFO (possible values: " +
		strings.Join(allLoggerLevels, ", ") + ")"
)

// rootFlags holds the persistent flags shared by every command.
type rootFlags struct {
	logLevel string
}

// addFlags registers the persistent flags on cmd, with completion of the log levels.
func (f *rootFlags) addFlags(cmd *cobra.Command) {
	defaultLevel := logger.INFO.String()
	if level, found := os.LookupEnv(logLevelEnvName); found {
		defaultLevel = logger.LevelFromString(level).String()
	}

	cmd.PersistentFlags().StringVarP(&f.logLevel, logLevelFlagName, logLevelShortFlagName, defaultLevel, logLevelFlagUsage)
	_ = cmd.RegisterFlagCompletionFunc(logLevelFlagName, func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return allLoggerLevels, cobra.ShellCompDirectiveNoFileComp
	})
}

func main() {
	cmd := rootCmd()
	log := logger.NewLogger(cmd.OutOrStderr())

	// serve stops the server and the pollers once the context is cancelled
	ctx, stop := signal.NotifyContext(logger.WithContext(context.Background(), log), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(1)
	}
}

// rootCmd builds the devboard command tree.
func rootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   info.AppName,
		Short: heredoc.Doc(appShort),
		Long:  heredoc.Doc(appLong),

		SilenceErrors: true,
		SilenceUsage:  true,

		ValidArgsFunction: cobra.NoFileCompletions,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.FromContext(cmd.Context()).SetLevel(logger.LevelFromString(flags.logLevel))
		},
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		c.PrintErrln(err)
		_ = c.Usage()
		return err
	})

	flags.addFlags(cmd)
	cmd.AddCommand(
		internalcmd.ServeCmd(),
		internalcmd.SyncCmd(),
		versionCmd(),
	)

	return cmd
}

// versionCmd prints the version and the build information.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   versionCmdName,
		Short: "Display the " + info.AppName + " version",

		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString(Version, BuildDate, runtime.Version()))
		},
	}
}

// versionString formats the version metadata, e.g. "devboard 1.2.0 (2026-01-31), Go Version: go1.25.6".
func versionString(version, buildDate, runtimeVersion string) string {
	output := info.AppName + " " + version
	if buildDate != "" {
		output += " (" + buildDate + ")"
	}

	return output + ", Go Version: " + runtimeVersion
}
