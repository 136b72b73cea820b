package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mistakeknot/haconverse/internal/config"
	"github.com/mistakeknot/haconverse/internal/logx"
	"github.com/mistakeknot/haconverse/internal/tools"
)

// version is set at build time via -ldflags.
var version = "0.1.0"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		return
	}

	logx.Configure(os.Getenv("LOG_LEVEL"))
	log := logx.Log.With().Str("component", "haconverse-mcp").Logger()

	config.LoadDotenv(log)
	cfg := config.Load(log)

	s := server.NewMCPServer(
		"haconverse",
		version,
		server.WithToolCapabilities(true),
	)

	tools.RegisterAll(s, cfg, log)

	log.Info().Str("version", version).Msg("MCP server for Home Assistant conversation starting on stdio")
	if err := server.ServeStdio(s); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}
