package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/renqiukai/wzbank-go/internal/canonical"
	"github.com/renqiukai/wzbank-go/internal/config"
	"github.com/renqiukai/wzbank-go/internal/crypto"
	"github.com/renqiukai/wzbank-go/internal/logger"
	"github.com/renqiukai/wzbank-go/internal/sandbox"
	"github.com/renqiukai/wzbank-go/internal/server"
	"github.com/renqiukai/wzbank-go/internal/version"
)

//	@title			wzbank-sandbox
//	@description	wzbank-sandbox plays the Wenzhou Bank open-banking gateway for local development and interop tests.
//	@description
//	@description	## Envelope
//	@description	Gateway endpoints accept `POST /prdApiGW/V{n}/P{service}/S{scenario}/{operation}` with the body
//	@description	`{"bizContent":"<SM4-CBC ciphertext, uppercase hex>"}` and the headers `x-aob-appID`, `x-aob-bankID`
//	@description	and `x-aob-signature` (SM2 signature, DER, uppercase hex).
//	@description	Responses are sealed the same way with the sandbox key published at `/public-key`.
//	@description
//	@description	## Common Error Responses
//	@description	Requests that cannot be opened get an unsigned JSON body with a `dealCode`:
//	@description	- `400` malformed envelope
//	@description	- `401` bad signature
//	@description	- `403` unknown app or bank id
//	@description	- `413` Request body exceeds size limit
//	@description	- `429` Rate limit exceeded
//	@description	- `500` Internal server error
//	@description
//	@description	Business failures (unknown account, insufficient funds, duplicate order) are sealed responses
//	@description	with a dealCode other than 0000.
//	@license.name	MIT

//	@servers.url			http://localhost:8080
//	@servers.description	Development server

//	@accept		json
//	@produce	json

//	@tag.name			Common
//	@tag.description	Server API endpoints (health, version, public key)

func main() {
	cmd := &cobra.Command{
		Use:   "wzbank-sandbox",
		Short: "Sandbox Wenzhou Bank gateway",
		Long:  `wzbank-sandbox verifies and answers sealed requests with an in-memory ledger`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	v := version.Get()
	cmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.NewSandboxConfig()
	if err != nil {
		log.Printf("failed to load configuration: %v", err.Error())
		os.Exit(1)
	}

	appLogger := logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)

	keys, err := crypto.ParseKeyMaterial(cfg.SM2PrivateKey, cfg.SM2ClientPublicKey, cfg.SM4Key, cfg.SM4IV)
	if err != nil {
		appLogger.Error("Failed to load key material", slog.String("error", err.Error()))
		os.Exit(1)
	}
	provider, err := crypto.NewSMProvider(keys)
	if err != nil {
		appLogger.Error("Failed to create crypto provider", slog.String("error", err.Error()))
		os.Exit(1)
	}

	appLogger.Info("Configuration loaded",
		slog.String("ENVIRONMENT", cfg.Environment),
		slog.String("HOST", cfg.Host),
		slog.Int("PORT", cfg.Port),
		slog.String("LOG_LEVEL", cfg.LogLevel),
		slog.String("SANDBOX_APP_ID", cfg.AppID),
		slog.String("SANDBOX_BANK_ID", cfg.BankID),
		slog.String("SANDBOX_SIGN_PROFILE", cfg.SignProfile),
		slog.Any("keys", keys),
	)

	signProfile, err := canonical.ParseSignProfile(cfg.SignProfile)
	if err != nil {
		appLogger.Error("Invalid sign profile", slog.String("error", err.Error()))
		os.Exit(1)
	}

	gateway, err := sandbox.NewGateway(provider,
		sandbox.WithAppID(cfg.AppID),
		sandbox.WithBankID(cfg.BankID),
		sandbox.WithSignProfile(signProfile),
	)
	if err != nil {
		appLogger.Error("Failed to create gateway", slog.String("error", err.Error()))
		os.Exit(1)
	}

	appLogger.Info("Starting server", slog.String("version", version.Get().Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := server.NewServer(cfg, gateway, keys.SigningPublicKey(), appLogger)
	if err != nil {
		appLogger.Error("Failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := server.Start(ctx); err != nil {
		appLogger.Error("Server error", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("server shutdown complete")
	return nil
}
