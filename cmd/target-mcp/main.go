package main

import (
	"fmt"
	"os"

	"github.com/ironsheep/target-tracker-mcp/internal/config"
	"github.com/ironsheep/target-tracker-mcp/internal/controller"
	"github.com/ironsheep/target-tracker-mcp/internal/logger"
	"github.com/ironsheep/target-tracker-mcp/internal/server"
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
			fmt.Printf("target-tracker-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("target-tracker-mcp - MCP server for image-target detection and tracking")
			fmt.Println()
			fmt.Println("Usage: target-tracker-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  TARGET_MCP_LOG_LEVEL=debug          Log level (debug, info, warn, error)")
			fmt.Println("  TARGET_MCP_FOV=45                   Vertical camera field of view in degrees")
			fmt.Println("  TARGET_MCP_DESCRIPTOR=lsh           Descriptor kind (lsh, freak, signature)")
			fmt.Println("  TARGET_MCP_DEBUG=false              Include per-stage match diagnostics")
			fmt.Println("  TARGET_MCP_EDGE_SNAP=false          Refine matches against image edges")
			fmt.Println("  TARGET_MCP_NONRIGID=false           Relax the tracking mesh per frame")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	// Logs go to stderr (stdout is for MCP protocol)
	log := logger.FromEnv()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Info().
		Str("version", Version).
		Str("built", BuildTime).
		Str("commit", GitCommit).
		Str("descriptor", cfg.Detector.Kind.String()).
		Float64("fov", cfg.Camera.FOV).
		Msg("target tracker MCP server starting")

	srv := server.New(controller.New(cfg, log), log)
	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
