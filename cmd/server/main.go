package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"math-tutor-backend/config"
	"math-tutor-backend/dao"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "math-tutor",
	Short:         "AI math tutoring backend",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file (defaults to $CONFIG_PATH or config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(genSecretCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", "err", err)
		os.Exit(1)
	}
}

// loadConfig 加载配置并初始化日志
func loadConfig() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	config.Cfg = cfg
	setupLogger(cfg.Log)
	return nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func initDB() error {
	if config.Cfg.MySQL.DSN == "" {
		return fmt.Errorf("mysql dsn is not configured")
	}
	return dao.Init(config.Cfg.MySQL.DSN)
}
