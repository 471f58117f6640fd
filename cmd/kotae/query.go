package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/cli"
)

// NewRetrieveCmd prints the rows most similar to a query.
func NewRetrieveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrieve <file> <query>",
		Short: "Retrieve the rows most similar to a query",
		Long: `Index <file> and print the top-k rows for the query.
The query is all remaining arguments joined by spaces.`,
		Example: `  kotae retrieve people.csv who lives in tokyo
  kotae retrieve --columns name,city --top-k 3 --output json people.csv tokyo`,
		Args: cobra.MinimumNArgs(2),
		RunE: runRetrieve,
	}
	addQueryFlags(cmd)
	return cmd
}

// NewAskCmd answers a question from the rows most similar to it.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <file> <question>",
		Short: "Answer a question about a file",
		Long: `Index <file>, retrieve the top-k rows for the question and ask the LLM to answer
from them. Requires the API key named by llm.api_key_env (default OPENAI_API_KEY).`,
		Example: `  kotae ask sales.csv which region sold the most in march`,
		Args:    cobra.MinimumNArgs(2),
		RunE:    runAsk,
	}
	addQueryFlags(cmd)
	return cmd
}

func addQueryFlags(cmd *cobra.Command) {
	addColumnsFlag(cmd)
	cmd.Flags().IntP("top-k", "k", 0, "number of rows to retrieve (default from config)")
	cmd.Flags().StringP("output", "o", "text", "output format: text or json")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	return runQuery(cmd, args, false)
}

func runAsk(cmd *cobra.Command, args []string) error {
	return runQuery(cmd, args, true)
}

func runQuery(cmd *cobra.Command, args []string, ask bool) error {
	format, err := outputFlag(cmd)
	if err != nil {
		return err
	}
	query := buildQuery(args[1:])
	if query == "" {
		return errors.New("query cannot be empty")
	}
	topK, _ := cmd.Flags().GetInt("top-k")

	cfg, _, logger, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	comps, err := initializeComponents(cfg, logger, ":memory:")
	if err != nil {
		return err
	}
	defer comps.Close()

	ctx := cmd.Context()
	ds, err := indexFile(ctx, comps.Sessions, args[0], "", columnsFlag(cmd), loadOptions(cfg))
	if err != nil {
		return err
	}

	if !ask {
		res, err := comps.Sessions.Retrieve(ctx, ds.ID, query, topK)
		if err != nil {
			return err
		}
		return cli.WriteRetrieveResults(cmd.OutOrStdout(), res, format)
	}

	res, err := comps.Sessions.Ask(ctx, ds.ID, query, topK)
	if errors.Is(err, answer.ErrMissingAPIKey) {
		return fmt.Errorf("%w: set %s", err, cfg.LLM.APIKeyEnv)
	}
	if err != nil {
		return err
	}
	return cli.WriteAnswer(cmd.OutOrStdout(), res, format)
}
