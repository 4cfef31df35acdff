package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

// ClientEnvironment is the configuration of the gateway client and the CLI.
type ClientEnvironment struct {
	Environment string `env:"ENVIRONMENT,default=dev"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	// gateway identity
	AppID   string `env:"WZB_APP_ID,required=true"`
	BankID  string `env:"WZB_BANK_ID,default=WZB"`
	BaseURL string `env:"WZB_BASE_URL,default=https://openapi.wzbank.cn/prdApiGW/"`

	// key material: SM2 keys as hex or PEM, SM4 key and IV as 32 hex characters
	SM2PrivateKey    string `env:"WZB_SM2_PRIVATE_KEY,required=true"`
	SM2BankPublicKey string `env:"WZB_SM2_BANK_PUBLIC_KEY,required=true"`
	SM4Key           string `env:"WZB_SM4_KEY,required=true"`
	SM4IV            string `env:"WZB_SM4_IV,required=true"`

	// protocol settings
	VerifyResponseSignature bool   `env:"WZB_VERIFY_RESPONSE_SIGNATURE,default=true"`
	SignProfile             string `env:"WZB_SIGN_PROFILE,default=basic"`
	ResponseSignProfile     string `env:"WZB_RESPONSE_SIGN_PROFILE"`
	PayloadProfile          string `env:"WZB_PAYLOAD_PROFILE,default=ordered"`
	SuccessDealCode         string `env:"WZB_SUCCESS_DEAL_CODE,default=0000"`

	// http settings
	HTTPTimeout          time.Duration `env:"WZB_HTTP_TIMEOUT,default=30s"`
	RateLimitRPS         float64       `env:"WZB_RATE_LIMIT_RPS,default=0"`
	RateLimitBurst       int           `env:"WZB_RATE_LIMIT_BURST,default=1"`
	MaxResponseBytes     int64         `env:"WZB_MAX_RESPONSE_BYTES,default=4194304"`
	MaxRetries           int           `env:"WZB_MAX_RETRIES,default=0"`
	RetryInitialInterval time.Duration `env:"WZB_RETRY_INITIAL_INTERVAL,default=500ms"`
	RetryMaxInterval     time.Duration `env:"WZB_RETRY_MAX_INTERVAL,default=10s"`
}

// SandboxEnvironment is the configuration of the sandbox gateway.
type SandboxEnvironment struct {

	// http server settings
	Environment           string        `env:"ENVIRONMENT,default=dev"`
	Host                  string        `env:"HOST,default=0.0.0.0"`
	Port                  int           `env:"PORT,default=8080"`
	LogLevel              string        `env:"LOG_LEVEL,default=debug"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	ReadTimeout           time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=15s"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	HandlerTimeout        time.Duration `env:"HANDLER_TIMEOUT,default=60s"`
	RateLimitRPS          int32         `env:"RATE_LIMIT_RPS,default=100"`
	RateLimitBurst        int32         `env:"RATE_LIMIT_BURST,default=200"`
	MaxRequestBytes       int64         `env:"MAX_REQUEST_BYTES,default=1048576"`

	// the sandbox plays the bank: it signs with the bank key and verifies with the client's public key
	AppID              string `env:"SANDBOX_APP_ID"`
	BankID             string `env:"SANDBOX_BANK_ID,default=WZB"`
	SM2PrivateKey      string `env:"SANDBOX_SM2_PRIVATE_KEY,required=true"`
	SM2ClientPublicKey string `env:"SANDBOX_SM2_CLIENT_PUBLIC_KEY,required=true"`
	SM4Key             string `env:"SANDBOX_SM4_KEY,required=true"`
	SM4IV              string `env:"SANDBOX_SM4_IV,required=true"`
	SignProfile        string `env:"SANDBOX_SIGN_PROFILE,default=basic"`
}

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"prod":    true,
	"staging": true,
}

var validPayloadProfiles = map[string]bool{
	"ordered": true,
	"jcs":     true,
}

var validSignProfiles = map[string]bool{
	"basic":   true,
	"gateway": true,
	"body":    true,
}

// NewClientConfig loads environment variables and returns a ClientEnvironment struct that contains the values
func NewClientConfig() (*ClientEnvironment, error) {
	var cfg ClientEnvironment

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateClientConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewSandboxConfig loads environment variables and returns a SandboxEnvironment struct that contains the values
func NewSandboxConfig() (*SandboxEnvironment, error) {
	var cfg SandboxEnvironment

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateSandboxConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateClientConfig(cfg *ClientEnvironment) error {
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT: %s", cfg.Environment)
	}
	if strings.TrimSpace(cfg.AppID) == "" {
		return fmt.Errorf("WZB_APP_ID must not be empty")
	}
	if strings.TrimSpace(cfg.BankID) == "" {
		return fmt.Errorf("WZB_BANK_ID must not be empty")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid WZB_BASE_URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("WZB_BASE_URL must be an http or https URL, got %q", cfg.BaseURL)
	}
	// the production gateway is https only
	if cfg.Environment == "prod" && u.Scheme != "https" {
		return fmt.Errorf("WZB_BASE_URL must use https in prod")
	}

	if !validSignProfiles[cfg.SignProfile] {
		return fmt.Errorf("invalid WZB_SIGN_PROFILE: %s", cfg.SignProfile)
	}
	if cfg.ResponseSignProfile != "" && !validSignProfiles[cfg.ResponseSignProfile] {
		return fmt.Errorf("invalid WZB_RESPONSE_SIGN_PROFILE: %s", cfg.ResponseSignProfile)
	}
	if !validPayloadProfiles[cfg.PayloadProfile] {
		return fmt.Errorf("invalid WZB_PAYLOAD_PROFILE: %s (must be ordered or jcs)", cfg.PayloadProfile)
	}
	if cfg.SuccessDealCode == "" {
		return fmt.Errorf("WZB_SUCCESS_DEAL_CODE must not be empty")
	}

	if cfg.HTTPTimeout <= 0 {
		return fmt.Errorf("WZB_HTTP_TIMEOUT must be greater than 0")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("WZB_RATE_LIMIT_RPS must be 0 or greater")
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst < 1 {
		return fmt.Errorf("WZB_RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}
	if cfg.MaxResponseBytes < 1 {
		return fmt.Errorf("WZB_MAX_RESPONSE_BYTES must be at least 1")
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("WZB_MAX_RETRIES must be 0 or greater")
	}
	if cfg.RetryInitialInterval <= 0 || cfg.RetryMaxInterval < cfg.RetryInitialInterval {
		return fmt.Errorf("WZB_RETRY_MAX_INTERVAL (%s) cannot be less than WZB_RETRY_INITIAL_INTERVAL (%s)",
			cfg.RetryMaxInterval, cfg.RetryInitialInterval)
	}

	return nil
}

func validateSandboxConfig(cfg *SandboxEnvironment) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT: %s", cfg.Environment)
	}
	if cfg.Environment == "prod" {
		return fmt.Errorf("the sandbox gateway must not run with ENVIRONMENT=prod")
	}
	if !validSignProfiles[cfg.SignProfile] {
		return fmt.Errorf("invalid SANDBOX_SIGN_PROFILE: %s", cfg.SignProfile)
	}
	if cfg.MaxRequestBytes < 1 {
		return fmt.Errorf("MAX_REQUEST_BYTES must be at least 1")
	}
	if strings.TrimSpace(cfg.BankID) == "" {
		return fmt.Errorf("SANDBOX_BANK_ID must not be empty")
	}
	return nil
}
