package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// NewRootCmd builds the kotae command tree.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kotae",
		Short: "Ask questions about tabular data",
		Long: `kotae turns the rows of a CSV, TSV, XLSX or ODS file into searchable records,
retrieves the rows most similar to a question, and asks an LLM to answer from them.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(
		NewIndexCmd(),
		NewRetrieveCmd(),
		NewAskCmd(),
		NewServeCmd(),
		NewVersionCmd(version),
	)
	return rootCmd
}

// NewVersionCmd prints the build version.
func NewVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kotae version %s\n", version)
		},
	}
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func addColumnsFlag(cmd *cobra.Command) {
	cmd.Flags().StringSlice("columns", nil, "columns to index, in order (default: all)")
}

// columnsFlag returns nil when --columns was not given, so every column is used.
func columnsFlag(cmd *cobra.Command) []string {
	if !cmd.Flags().Changed("columns") {
		return nil
	}
	cols, _ := cmd.Flags().GetStringSlice("columns")
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
