package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/ajirawise/internal/payment"
)

var mpesaCmd = &cobra.Command{
	Use:   "mpesa",
	Short: "M-Pesa subcommands",
}

var mpesaBaseURL string

var mpesaRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the C2B callback URLs with Daraja",
	Long:  "Registers <base-url>/mpesa/validation and <base-url>/mpesa/confirmation for the configured paybill.",
	RunE:  runMpesaRegister,
}

func init() {
	rootCmd.AddCommand(mpesaCmd)
	mpesaCmd.AddCommand(mpesaRegisterCmd)
	mpesaRegisterCmd.Flags().StringVar(&mpesaBaseURL, "base-url", "", "public https base URL of this server")
	_ = mpesaRegisterCmd.MarkFlagRequired("base-url")
}

func runMpesaRegister(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Credits.Mode != "mpesa" {
		return errors.New("credits.mode is not mpesa")
	}
	if cfg.Secrets.MpesaConsumerKey == "" || cfg.Secrets.MpesaConsumerSecret == "" {
		return errors.New("MPESA_CONSUMER_KEY and MPESA_CONSUMER_SECRET are required")
	}

	client := payment.NewDarajaClient(
		cfg.Credits.DarajaEnv,
		cfg.Secrets.MpesaConsumerKey,
		cfg.Secrets.MpesaConsumerSecret,
		cfg.Credits.Paybill,
		&http.Client{Timeout: payment.DefaultTimeout},
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	base := strings.TrimRight(mpesaBaseURL, "/")
	resp, err := client.RegisterURLs(ctx, base+"/mpesa/validation", base+"/mpesa/confirmation")
	if err != nil {
		logger.Error("registration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("callback URLs registered",
		"env", cfg.Credits.DarajaEnv,
		"shortcode", cfg.Credits.Paybill,
		"response", resp.ResponseDescription,
	)
	return nil
}
