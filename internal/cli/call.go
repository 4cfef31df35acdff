package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/renqiukai/wzbank-go/internal/client"
	"github.com/renqiukai/wzbank-go/internal/endpoints"
)

var (
	callFlags      requestFlags
	callIdempotent bool
)

var callCmd = &cobra.Command{
	Use:   "call <endpoint>",
	Short: "Send a payload to any gateway endpoint",
	Long: `Seal a business payload, post it to the gateway and print the decrypted response.

<endpoint> is a path such as V1/P01502/S01/queryeaccountbalance, an operation name
(queryeaccountbalance) or a short name from 'wzbank endpoints' (balance).

Example:
  wzbank call balance --field payAcctNo=733000120190056868
  wzbank call V1/P01506/S01/singletrans --data @transfer.json --idempotency-key ORD-1`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	addRequestFlags(callCmd, &callFlags)
	callCmd.Flags().StringVarP(&callFlags.data, "data", "d", "", "business payload as a JSON object, or @file")
	callCmd.Flags().StringArrayVarP(&callFlags.fields, "field", "f", nil, "business field key=value (repeatable, appended after --data)")
	callCmd.Flags().BoolVar(&callIdempotent, "idempotent", false, "allow retries without an idempotency key (read-only endpoints)")
}

func addRequestFlags(cmd *cobra.Command, f *requestFlags) {
	cmd.Flags().StringVar(&f.idempotencyKey, "idempotency-key", "", "x-idempotency-key value; makes the call retryable")
	cmd.Flags().StringVar(&f.interactionID, "interaction-id", "", "x-aob-interaction-id value (generated when empty)")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "optional gateway header name=value (repeatable)")
}

func runCall(cmd *cobra.Command, args []string) error {
	payload, err := callFlags.payload()
	if err != nil {
		return err
	}
	opts, err := callFlags.callOptions()
	if err != nil {
		return err
	}

	c, err := newClient(cfg, appLogger)
	if err != nil {
		return err
	}

	if e, ok := endpoints.Lookup(args[0]); ok {
		appLogger.Debug("endpoint resolved", slog.String("name", e.Name), slog.String("path", string(e.Path)))
		if callIdempotent {
			opts = append(opts, client.Idempotent())
		}
		resp, err := endpoints.New(c).Call(cmd.Context(), e, payload, opts...)
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), resp)
	}

	path, err := endpoints.ParsePath(args[0])
	if err != nil {
		return fmt.Errorf("unknown endpoint %q: %w", args[0], err)
	}
	if callIdempotent {
		opts = append(opts, client.Idempotent())
	}
	resp, err := c.Call(cmd.Context(), string(path), payload, opts...)
	if err != nil {
		return err
	}
	return printResponse(cmd.OutOrStdout(), resp)
}

// endpointPath resolves a short name, operation name or path to a gateway path.
func endpointPath(s string) (string, error) {
	if e, ok := endpoints.Lookup(s); ok {
		return string(e.Path), nil
	}
	path, err := endpoints.ParsePath(s)
	if err != nil {
		return "", err
	}
	return string(path), nil
}
