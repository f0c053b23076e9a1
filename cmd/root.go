package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"DubFlow/config"
	"DubFlow/logger"
	"DubFlow/server"
)

var rootCmd = &cobra.Command{
	Use:   "dubflow_server",
	Short: "DubFlow dubs uploaded videos with Gemini voices.",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

// loadConfig reads .env and the environment and initialises logging from it.
func loadConfig() *config.Config {
	cfg := config.Load()
	logger.InitLogger(logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		Compress:   true,
	})
	return cfg
}

func runServer() {
	cfg := loadConfig()
	defer logger.Sync()

	logger.Info("Starting DubFlow server...")
	if err := server.Start(cfg); err != nil {
		logger.Fatal("Server exited with error", logger.ErrorField(err))
	}
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
