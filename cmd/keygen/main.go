// keygen is a CLI tool for generating SM2 key pairs and SM4 keys for the gateway client and the sandbox.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/renqiukai/wzbank-go/internal/crypto"
	"github.com/renqiukai/wzbank-go/internal/version"
)

// file naming convention - name.private.pem, name.public.pem
const (
	publicKeyFileNameFormat  = "%s.public.pem"
	privateKeyFileNameFormat = "%s.private.pem"
)

var (
	name      string
	outputDir string
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "keygen",
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		Short:             "SM2/SM4 key generator",
		Long:              "Generate SM2 key pairs and SM4 keys for the gateway client and the sandbox",
	}

	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	sm2Cmd := &cobra.Command{
		Use:   "sm2",
		Short: "Generate an SM2 key pair",
		Long: `Generate an SM2 key pair. The keys are printed as hex (the format the bank exchanges)
and, when --outputdir is given, also written as PEM files.`,
		RunE: runSM2,
	}
	sm2Cmd.Flags().StringVarP(&name, "name", "n", "client", "file name prefix")
	sm2Cmd.Flags().StringVarP(&outputDir, "outputdir", "o", "", "output directory for PEM files")

	sm4Cmd := &cobra.Command{
		Use:   "sm4",
		Short: "Generate an SM4 key and IV",
		RunE:  runSM4,
	}

	rootCmd.AddCommand(sm2Cmd, sm4Cmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSM2(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.GenerateSM2KeyPair()
	if err != nil {
		return err
	}

	fmt.Printf("private key (hex): %s\n", crypto.PrivateKeyToHex(privateKey))
	fmt.Printf("public key (hex):  %s\n", crypto.PublicKeyToHex(&privateKey.PublicKey))
	fmt.Printf("fingerprint:       %s\n", crypto.Fingerprint(&privateKey.PublicKey))

	if outputDir == "" {
		return nil
	}

	if _, err := os.Stat(outputDir); os.IsNotExist(err) {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	publicFile := fmt.Sprintf(publicKeyFileNameFormat, name)
	if err := crypto.SaveSM2PublicKeyToPEMFile(&privateKey.PublicKey, outputDir, publicFile); err != nil {
		return fmt.Errorf("failed to save public key: %w", err)
	}
	fmt.Printf("✓ Public key:  %s/%s\n", outputDir, publicFile)

	privateFile := fmt.Sprintf(privateKeyFileNameFormat, name)
	if err := crypto.SaveSM2PrivateKeyToPEMFile(privateKey, outputDir, privateFile); err != nil {
		return fmt.Errorf("failed to save private key: %w", err)
	}
	fmt.Printf("✓ Private key: %s/%s (unencrypted, keep it safe)\n", outputDir, privateFile)

	return nil
}

func runSM4(cmd *cobra.Command, args []string) error {
	key, iv, err := crypto.GenerateSM4Key()
	if err != nil {
		return err
	}
	fmt.Printf("SM4 key: %s\n", strings.ToUpper(hex.EncodeToString(key)))
	fmt.Printf("SM4 IV:  %s\n", strings.ToUpper(hex.EncodeToString(iv)))
	return nil
}
