package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/vault-geometry-mcp/internal/config"
	"github.com/ironsheep/vault-geometry-mcp/internal/logging"
	"github.com/ironsheep/vault-geometry-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("vault-geometry-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("vault-geometry-mcp - MCP server for vault bay-plan geometry")
			fmt.Println()
			fmt.Println("Usage: vault-geometry-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  " + config.EnvConfig + "=<file>      JSON configuration file")
			fmt.Println("  " + config.EnvDataDir + "=<dir>    Directory holding projects/")
			fmt.Println("  " + config.EnvWorkers + "=<n>       Concurrent CPU-bound tool calls")
			fmt.Println("  " + config.EnvLogLevel + "=debug   Enable debug logging")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			return
		}
	}

	// stdout is for MCP protocol; logs go to stderr.
	log.SetOutput(os.Stderr)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logger, err := logging.New(server.ServerName, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Debugw("starting", "version", Version, "built", BuildTime, "commit", GitCommit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, Version, logger)
	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Fatalw("Server error", "error", err)
	}
}
