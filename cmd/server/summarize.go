package main

import (
	"log/slog"

	"math-tutor-backend/config"
	"math-tutor-backend/service/gateway"

	"github.com/spf13/cobra"
)

// summarizeCmd 同步为指定会话生成摘要，用于自动摘要失败后的人工补救
var summarizeCmd = &cobra.Command{
	Use:   "summarize <session-id>",
	Short: "Generate the summary of an ended session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		if err := initDB(); err != nil {
			return err
		}

		gw, err := gateway.New(config.Cfg.Model)
		if err != nil {
			return err
		}
		summarizer := newSummarizer(config.Cfg, gw)

		sessionID := args[0]
		if err := summarizer.Summarize(cmd.Context(), sessionID); err != nil {
			return err
		}

		result, err := summarizer.Status(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		slog.Info("Summary status", "session_id", sessionID, "status", result.Status)
		return nil
	},
}
