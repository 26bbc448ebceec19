// Package main is the entry point for the tic-tac application
package main

import (
	"github.com/dhruv-db/tic-tac-sub000/cmd"
	"github.com/dhruv-db/tic-tac-sub000/internal/config"
	"github.com/dhruv-db/tic-tac-sub000/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	cmd.Execute(cfg)
}
