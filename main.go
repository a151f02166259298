// Package main is the entry point for the langua CLI
package main

import (
	"github.com/languatalk/langua-go/cmd"
	"github.com/languatalk/langua-go/internal/config"
	"github.com/languatalk/langua-go/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	cmd.Execute(cfg)
}
