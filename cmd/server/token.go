package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"math-tutor-backend/middleware"

	"github.com/spf13/cobra"
)

var genSecretCmd = &cobra.Command{
	Use:   "gen-secret",
	Short: "Generate a random JWT secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := generateJWTSecret()
		if err != nil {
			return fmt.Errorf("failed to generate secret: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), secret)
		return nil
	},
}

func generateJWTSecret() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(key), nil
}

var (
	tokenUser string
	tokenRole string
)

// 身份由外部系统管理，这里只为联调签发令牌
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a JWT for a student or teacher",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		token, err := middleware.GenerateToken(tokenUser, tokenRole)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User id placed in the token")
	tokenCmd.Flags().StringVar(&tokenRole, "role", middleware.RoleStudent, "Role: student or teacher")
	_ = tokenCmd.MarkFlagRequired("user")
}
