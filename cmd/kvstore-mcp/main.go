package main

import (
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/UltraSive/ttlkv/internal/client"
	"github.com/UltraSive/ttlkv/internal/config"
	"github.com/UltraSive/ttlkv/internal/logger"
	"github.com/UltraSive/ttlkv/internal/tools"
)

func main() {
	cfg := config.Default()
	envErr := cfg.ApplyEnv(os.Getenv)

	// stdout carries the MCP stream, so logs go to a file or stderr.
	logger.SetVerbosity(cfg.LogVerbosity)
	log, closeLog, err := logger.New(logger.Options{Path: os.Getenv(config.EnvPrefix + "MCP_LOG")})
	if err != nil {
		panic(err)
	}
	defer closeLog.Close()

	if envErr != nil {
		log.Error(envErr, "reading environment")
		os.Exit(2)
	}

	kv := client.New(cfg.Network, cfg.Addr, 2*time.Second)
	log.Info("using ttlkv server", "network", cfg.Network, "addr", cfg.Addr)

	s := server.NewMCPServer(
		"ttlkv",
		"0.1.0",
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)
	tools.Register(s, kv)

	log.Info("starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		log.Error(err, "server error")
	}
}
