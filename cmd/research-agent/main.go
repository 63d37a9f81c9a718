package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rthallapally/AI-Research-Agent/pkg/app"
	"github.com/rthallapally/AI-Research-Agent/pkg/config"
	"github.com/rthallapally/AI-Research-Agent/pkg/graph"
	"github.com/rthallapally/AI-Research-Agent/pkg/research"
)

var (
	query      string
	docsDir    string
	graphPath  string
	outPath    string
	htmlPath   string
	reportPath string
	topic      string
)

func main() {
	// Setup structured logging
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	// It's okay if .env doesn't exist, as long as env vars are set
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "research-agent",
		Short: "A terminal-based research agent",
		Long:  `research-agent decomposes a question into sub-questions, gathers web, arXiv and local PDF evidence, and writes a cited report.`,
		RunE:  runResearch,
	}
	rootCmd.Flags().StringVarP(&query, "query", "q", "", "The research question")
	rootCmd.Flags().StringVar(&docsDir, "docs", "", "Directory of local PDF documents (default from DOCS_DIR)")
	rootCmd.Flags().StringVar(&graphPath, "graph", "", "Also extract a knowledge graph and write it to this path")
	rootCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the report to this file instead of stdout")
	rootCmd.Flags().StringVar(&htmlPath, "html", "", "Also write the report as HTML to this path")

	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Build a knowledge graph from an existing report",
		RunE:  runGraph,
	}
	graphCmd.Flags().StringVar(&reportPath, "in", "", "Report file to analyze")
	graphCmd.Flags().StringVar(&topic, "topic", "", "Topic of the report")
	graphCmd.Flags().StringVarP(&outPath, "out", "o", "", "Graph output path (default from GRAPH_OUTPUT)")
	_ = graphCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(graphCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func runResearch(cmd *cobra.Command, _ []string) error {
	if !cmd.Flags().Changed("query") {
		// Interactive Mode
		reader := bufio.NewReader(os.Stdin)
		fmt.Fprint(os.Stderr, "Enter your research question: ")
		input, _ := reader.ReadString('\n')
		query = input
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("research question cannot be empty")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	components, err := app.New(ctx, cfg, false)
	if err != nil {
		return fmt.Errorf("error initializing components: %w", err)
	}
	defer components.Close()

	pipeline, err := components.Pipeline(slog.Default(), app.RunOptions{DocsDir: docsDir, GraphOutput: graphPath})
	if err != nil {
		return fmt.Errorf("error initializing pipeline: %w", err)
	}

	slog.Info("Starting research", "query", query, "backend", cfg.Retrieval.Backend)
	final, err := pipeline.Run(ctx, query)
	if err != nil {
		return fmt.Errorf("error running research: %w", err)
	}

	if err := writeReport(final.Report); err != nil {
		return err
	}
	if htmlPath != "" {
		if err := os.WriteFile(htmlPath, research.RenderHTML(final.Report), 0o644); err != nil {
			return fmt.Errorf("failed to write HTML report: %w", err)
		}
		slog.Info("HTML report saved", "path", htmlPath)
	}

	if graphPath != "" {
		g, err := pipeline.BuildGraph(ctx, final)
		if err != nil {
			return fmt.Errorf("error building knowledge graph: %w", err)
		}
		slog.Info("Knowledge graph ready", "path", graphPath, "nodes", len(g.Nodes), "edges", len(g.Edges))
	}
	return nil
}

func writeReport(report string) error {
	if outPath == "" {
		fmt.Println(report)
		return nil
	}
	if err := os.WriteFile(outPath, []byte(report), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	slog.Info("Report saved", "path", outPath)
	return nil
}

func runGraph(cmd *cobra.Command, _ []string) error {
	report, err := os.ReadFile(reportPath)
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if outPath == "" {
		outPath = cfg.GraphOutput
	}
	if topic == "" {
		topic = "Research"
	}

	extractor, err := app.NewGraphExtractor(cmd.Context(), cfg, slog.Default())
	if err != nil {
		return err
	}

	g := extractor.Extract(cmd.Context(), string(report), topic)
	if err := graph.Save(outPath, g); err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}
	slog.Info("Knowledge graph saved", "path", outPath, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return nil
}
