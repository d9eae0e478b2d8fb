package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/ajirawise/internal/auth"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Admin API helpers",
}

var adminSubject string

var adminTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin bearer token",
	Long:  "Signs a token with ADMIN_JWT_SECRET, valid for admin.token_ttl.",
	RunE:  runAdminToken,
}

var adminHashCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
	Long:  "Hashes the password given as an argument, or read from the first line of stdin.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAdminHash,
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminTokenCmd, adminHashCmd)
	adminTokenCmd.Flags().StringVar(&adminSubject, "subject", "", "token subject (default: admin.username)")
}

func runAdminToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Secrets.AdminJWTSecret == "" {
		return errors.New("ADMIN_JWT_SECRET is not set")
	}

	subject := adminSubject
	if subject == "" {
		subject = cfg.Admin.Username
	}
	token, err := auth.NewJWT(cfg.Secrets.AdminJWTSecret, cfg.Admin.TokenTTL).Sign(subject)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runAdminHash(cmd *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
