package cmd

import (
	"os"

	"github.com/languatalk/langua-go/internal/config"
	"github.com/languatalk/langua-go/internal/logger"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "langua",
	Short: "Langua CLI",
	Long:  `langua is a command-line client for the Langua language-learning API`,
}

func Execute(c *config.Config) {
	cfg = c
	logger.Debug("Starting CLI", "env", cfg.AppEnv)
	if err := rootCmd.Execute(); err != nil {
		logger.Error("CLI error", "error", err)
		os.Exit(1)
	}
}
