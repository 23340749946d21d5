package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "podctl",
		Short:         "Patent POD intake command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			asciiTables = !isTerminal(cmd.OutOrStdout())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", "", "YAML or TOML configuration file of KEY: value pairs")
	flags.StringVar(&ctx.sqlitePath, "db", "", "Use a local SQLite database at this path")
	flags.StringVar(&ctx.owner, "owner", "", "Owner id the applications belong to")
	flags.BoolVar(&ctx.jsonOutput, "json", false, "Print JSON instead of tables")
	flags.StringVar(&ctx.logLevel, "log-level", "warn", "Log level for diagnostics on stderr")

	rootCmd.AddCommand(
		newUploadCommand(ctx),
		newClassifyCommand(ctx),
		newSaveCommand(ctx),
		newListCommand(ctx),
		newShowCommand(ctx),
		newArchiveCommand(ctx),
		newWatchCommand(ctx),
	)
	return rootCmd
}

// isTerminal reports whether writer is an interactive terminal. Pipes and
// buffers get ASCII tables that survive grep and log capture.
func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
