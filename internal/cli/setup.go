package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/renqiukai/wzbank-go/internal/canonical"
	"github.com/renqiukai/wzbank-go/internal/client"
	"github.com/renqiukai/wzbank-go/internal/config"
	"github.com/renqiukai/wzbank-go/internal/crypto"
	"github.com/renqiukai/wzbank-go/internal/envelope"
	"github.com/renqiukai/wzbank-go/internal/transport"
)

// resolveKey returns a key value, reading it from a file when it is given as @path.
func resolveKey(value string) (string, error) {
	value = strings.TrimSpace(value)
	path, ok := strings.CutPrefix(value, "@")
	if !ok {
		return value, nil
	}
	if path == "" {
		return "", fmt.Errorf("empty key file path")
	}
	return crypto.ReadKeyFile(filepath.Dir(path), filepath.Base(path))
}

func newProvider(cfg *config.ClientEnvironment) (*crypto.SMProvider, error) {
	values := make([]string, 0, 4)
	for _, v := range []string{cfg.SM2PrivateKey, cfg.SM2BankPublicKey, cfg.SM4Key, cfg.SM4IV} {
		resolved, err := resolveKey(v)
		if err != nil {
			return nil, err
		}
		values = append(values, resolved)
	}

	keys, err := crypto.ParseKeyMaterial(values[0], values[1], values[2], values[3])
	if err != nil {
		return nil, err
	}
	return crypto.NewSMProvider(keys)
}

func codecOptions(cfg *config.ClientEnvironment) ([]envelope.Option, error) {
	signProfile, err := canonical.ParseSignProfile(cfg.SignProfile)
	if err != nil {
		return nil, err
	}
	payloadProfile, err := canonical.ParseProfile(cfg.PayloadProfile)
	if err != nil {
		return nil, err
	}
	opts := []envelope.Option{
		envelope.WithSignProfile(signProfile),
		envelope.WithPayloadProfile(payloadProfile),
		envelope.WithResponseVerification(cfg.VerifyResponseSignature),
		envelope.WithSuccessCode(cfg.SuccessDealCode),
	}
	if cfg.ResponseSignProfile != "" {
		responseProfile, err := canonical.ParseSignProfile(cfg.ResponseSignProfile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, envelope.WithResponseSignProfile(responseProfile))
	}
	return opts, nil
}

func newClient(cfg *config.ClientEnvironment, logger *slog.Logger) (*client.Client, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	opts, err := codecOptions(cfg)
	if err != nil {
		return nil, err
	}

	logger.Debug("client configured",
		slog.String("app_id", cfg.AppID),
		slog.String("bank_id", cfg.BankID),
		slog.String("base_url", cfg.BaseURL),
		slog.String("sign_profile", cfg.SignProfile),
		slog.Any("keys", provider.Keys()),
	)

	return client.New(client.Config{
		AppID:    cfg.AppID,
		BankID:   cfg.BankID,
		BaseURL:  cfg.BaseURL,
		Provider: provider,
		Transport: transport.NewHTTPTransport(transport.Options{
			Timeout:          cfg.HTTPTimeout,
			RateLimitRPS:     cfg.RateLimitRPS,
			RateLimitBurst:   cfg.RateLimitBurst,
			MaxResponseBytes: cfg.MaxResponseBytes,
		}),
		CodecOptions: opts,
		Retry: client.RetryPolicy{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     cfg.RetryMaxInterval,
		},
		Logger: logger,
	})
}
