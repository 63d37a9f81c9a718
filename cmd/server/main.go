package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/rthallapally/AI-Research-Agent/pkg/app"
	"github.com/rthallapally/AI-Research-Agent/pkg/config"
	"github.com/rthallapally/AI-Research-Agent/pkg/research"
	"github.com/rthallapally/AI-Research-Agent/pkg/server"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	components, err := app.New(ctx, cfg, true)
	if err != nil {
		slog.Error("Failed to initialize components", "error", err)
		os.Exit(1)
	}
	defer components.Close()

	// Initialize Schema
	if err := components.DB.InitSchema(ctx); err != nil {
		slog.Error("Failed to initialize schema", "error", err)
		os.Exit(1)
	}

	// Graphs are stored with the run and written to GRAPH_OUTPUT. Runs are
	// serialized, so they share one artifact path.
	newPipeline := func(logger *slog.Logger) (*research.Pipeline, error) {
		return components.Pipeline(logger, app.RunOptions{GraphOutput: cfg.GraphOutput})
	}

	svc := server.NewService(components.DB.Pool, newPipeline, slog.Default())
	toolset := &server.Toolset{
		Embedder:    components.Embedder,
		Backend:     components.Backend,
		Graph:       components.Extractor(slog.Default()),
		GraphOutput: cfg.GraphOutput,
	}
	handler := server.NewHandler(svc, server.NewMCPHandler(toolset))

	// Web Server Setup
	r := gin.Default()

	// CORS Setup
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Allow all for dev
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id", "Mcp-Protocol-Version"},
		ExposeHeaders:    []string{"Content-Length", "Mcp-Session-Id"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	slog.Info("Server starting", "port", cfg.Port, "backend", cfg.Retrieval.Backend)
	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
