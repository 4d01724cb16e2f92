package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/your-org/connmon/internal/logger"
)

const exitCodeError = 1

var (
	version   string
	commit    string
	buildDate string
)

func newRootCommand(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "connmon",
		Short:         "Observe outbound IPv4 TCP connections as they are established",
		Version:       versionFormatter(version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var logLevel = "info"
			if v.GetBool("verbose") {
				logLevel = "debug"
			}

			logger.SetLevel(logLevel)
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logs, overrides --log-level")
	_ = v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(initRunCommand(v))
	rootCmd.AddCommand(initVersionCommand())

	return rootCmd
}

// Execute builds the command tree and runs it with args. It exits the
// process on failure.
func Execute(args []string) {
	rootCmd := newRootCommand(newViper())
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		qwe(exitCodeError, err, "connmon")
	}
}

func initVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionFormatter(version, commit, buildDate))
		},
	}
}

func versionFormatter(ver, commit, buildDate string) string {
	if ver == "" && buildDate == "" && commit == "" {
		return "connmon version (built from source)"
	}

	return fmt.Sprintf("%s (build date: %s commit: %s)", ver, buildDate, commit)
}

// qwe quits with error. If there are messages, wraps error with message
func qwe(code int, err error, messages ...string) {
	for _, m := range messages {
		err = fmt.Errorf("%s: %w", m, err)
	}

	logger.Log.Errorf("%v", err)
	os.Exit(code)
}
