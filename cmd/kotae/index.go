package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/dataset"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/session"
)

// NewIndexCmd loads a file, embeds its rows and reports what was indexed.
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <file>",
		Short: "Index a tabular file",
		Long: `Load a CSV, TSV, XLSX or ODS file, render each row from the selected columns,
embed the rows and build the vector index. With --save the dataset is stored in the
configured database so that "kotae serve" restores it on startup.`,
		Args: cobra.ExactArgs(1),
		RunE: runIndex,
	}
	addColumnsFlag(cmd)
	cmd.Flags().String("name", "", "dataset name (default: file name)")
	cmd.Flags().Bool("save", false, "persist the dataset in the configured database")
	cmd.Flags().StringP("output", "o", "text", "output format: text or json")
	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	format, err := outputFlag(cmd)
	if err != nil {
		return err
	}
	cfg, _, logger, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	dbPath := ":memory:"
	if save, _ := cmd.Flags().GetBool("save"); save {
		dbPath = cfg.Storage.DatabasePath
	}
	comps, err := initializeComponents(cfg, logger, dbPath)
	if err != nil {
		return err
	}
	defer comps.Close()

	name, _ := cmd.Flags().GetString("name")
	start := time.Now()
	ds, err := indexFile(cmd.Context(), comps.Sessions, args[0], name, columnsFlag(cmd), loadOptions(cfg))
	if err != nil {
		return err
	}
	if err := cli.WriteDataset(cmd.OutOrStdout(), ds, format); err != nil {
		return err
	}
	if format == cli.OutputText {
		fmt.Fprintf(cmd.OutOrStdout(), "Index:   %s, %d dimensions, built in %s\n",
			cfg.Vector.IndexType, comps.Embedder.Dimensions(), time.Since(start).Round(time.Millisecond))
		if dbPath != ":memory:" {
			fmt.Fprintf(cmd.OutOrStdout(), "Saved:   %s (id %s)\n", dbPath, ds.ID)
		}
	}
	return nil
}

// indexFile loads path and creates a session for it.
func indexFile(ctx context.Context, mgr *session.Manager, path, name string, columns []string, opts dataset.Options) (*models.Dataset, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	tbl, err := dataset.Load(abs, opts)
	if err != nil {
		return nil, err
	}
	return mgr.Create(ctx, session.CreateRequest{
		Name:       name,
		SourcePath: abs,
		Columns:    columns,
		Table:      tbl,
	})
}

func outputFlag(cmd *cobra.Command) (cli.OutputFormat, error) {
	s, _ := cmd.Flags().GetString("output")
	return cli.ParseOutputFormat(s)
}
