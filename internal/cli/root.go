// Package cli implements the wzbank command: calls to the bank gateway plus offline
// tools to sign and decrypt envelopes.
//
// Configuration is read from WZB_* environment variables (see internal/config).
package cli

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/renqiukai/wzbank-go/internal/config"
	"github.com/renqiukai/wzbank-go/internal/logger"
	"github.com/renqiukai/wzbank-go/internal/version"
)

var (
	cfg       *config.ClientEnvironment
	appLogger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:               "wzbank",
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	Short:             "Wenzhou Bank open-banking API client",
	Long: `wzbank sends SM2 signed, SM4 encrypted requests to the Wenzhou Bank open-banking gateway
and verifies and decrypts the responses.

Configuration is read from the environment: WZB_APP_ID, WZB_SM2_PRIVATE_KEY, WZB_SM2_BANK_PUBLIC_KEY,
WZB_SM4_KEY and WZB_SM4_IV are required. Key values may be given inline (hex or PEM) or as @path to a file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewClientConfig()
		if err != nil {
			log.Printf("failed to load configuration: %v", err.Error())
			return err
		}

		appLogger = logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)
		return nil
	},
}

func Execute() {
	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(endpointsCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(bankInfoCmd)
	rootCmd.AddCommand(transferCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(decryptCmd)
}
