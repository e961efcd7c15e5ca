// Package main provides the Huginn CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orneryd/huginn/pkg/config"
	"github.com/orneryd/huginn/pkg/dataset"
	"github.com/orneryd/huginn/pkg/graph"
	"github.com/orneryd/huginn/pkg/inference"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "huginn",
		Short: "Huginn - Typed Knowledge Graph with Rule-Based Inference",
		Long: `Huginn is an in-memory knowledge graph engine written in Go,
combining typed nodes and confidence-weighted edges with a
forward/backward chaining rule engine.

Features:
  • Typed property graph with schema validation
  • Forward chaining to a fixpoint with fact materialization
  • Backward chaining with explainable proof steps
  • Constraint propagation and layout conflict detection
  • Structural analogy search`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Huginn v%s (%s)\n", version, commit)
		},
	})

	reasonCmd := &cobra.Command{
		Use:   "reason <dataset.yaml>",
		Short: "Run forward chaining over a dataset and print derived facts",
		Args:  cobra.ExactArgs(1),
		RunE:  runReason,
	}
	reasonCmd.Flags().Int("max-iterations", 0, "Iteration cap (0 = config default)")
	reasonCmd.Flags().Bool("materialize", false, "Write high-confidence facts back as edges")
	rootCmd.AddCommand(reasonCmd)

	queryCmd := &cobra.Command{
		Use:   "query <dataset.yaml> <kind> <subject> [predicate] [object]",
		Short: "Answer a query against a dataset",
		Long: `Answer a query against a dataset after a forward-chaining pass.

Kinds: is_related, find_related, why_related, what_if, recommend.`,
		Args: cobra.RangeArgs(3, 5),
		RunE: runQuery,
	}
	rootCmd.AddCommand(queryCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildEngine loads a dataset, wires the standard rules from its
// relation declarations, and returns a ready engine.
func buildEngine(path string, materialize bool) (*inference.Engine, *config.Config, error) {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, nil, err
	}

	ds, err := dataset.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}

	opts := graph.Options{}
	if cfg.Graph.DuplicateEdges == "error" {
		opts.DuplicateEdges = graph.DuplicateEdgeError
	}
	store := graph.NewStore(&opts)
	if err := ds.Apply(store); err != nil {
		return nil, nil, err
	}

	engine := inference.NewEngine(store, &inference.Options{
		Materialize:              materialize || cfg.Inference.MaterializeFacts,
		MaterializationThreshold: cfg.Inference.MaterializeThreshold,
		MaxProofDepth:            cfg.Inference.BackwardMaxDepth,
	}, logger)

	if len(ds.Relations.Transitive) > 0 {
		engine.AddRule(inference.NewTransitiveRule(ds.Relations.Transitive...))
	}
	if len(ds.Relations.Inverse) > 0 {
		engine.AddRule(inference.NewInverseRule(ds.Relations.Inverse))
	}
	return engine, cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runReason(cmd *cobra.Command, args []string) error {
	maxIterations, _ := cmd.Flags().GetInt("max-iterations")
	materialize, _ := cmd.Flags().GetBool("materialize")

	engine, cfg, err := buildEngine(args[0], materialize)
	if err != nil {
		return err
	}
	if maxIterations <= 0 {
		maxIterations = cfg.Inference.ForwardMaxIterations
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := engine.RunForwardChaining(ctx, maxIterations)
	if err != nil {
		return err
	}

	fmt.Printf("Derived %d fact(s) in %d iteration(s)\n", result.NewFacts, result.Iterations)
	for _, fact := range engine.Facts().All() {
		fmt.Printf("  %s -%s-> %s  (%.2f, %s)\n",
			fact.Subject, fact.Predicate, fact.Object, fact.Confidence, fact.Rule)
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	engine, cfg, err := buildEngine(args[0], false)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if _, err := engine.RunForwardChaining(ctx, cfg.Inference.ForwardMaxIterations); err != nil {
		return err
	}

	q := inference.Query{
		Kind:    inference.QueryKind(args[1]),
		Subject: graph.NodeID(args[2]),
	}
	if len(args) > 3 {
		q.Predicate = args[3]
	}
	if len(args) > 4 {
		q.Object = graph.NodeID(args[4])
	}

	result, err := engine.AnswerQuery(ctx, q)
	if err != nil {
		return err
	}
	if len(result.Answers) == 0 {
		fmt.Println("No answers.")
		return nil
	}
	fmt.Printf("Confidence: %.2f\n", result.Confidence)
	for _, a := range result.Answers {
		fmt.Printf("  %.2f  %s\n", a.Confidence, a.Text)
		if a.Explanation != "" {
			fmt.Printf("        %s\n", a.Explanation)
		}
	}
	return nil
}
