package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/renqiukai/wzbank-go/internal/endpoints"
)

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "List the documented gateway endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPATH\tIDEMPOTENT\tREQUIRED\tDESCRIPTION")
		for _, e := range endpoints.All() {
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", e.Name, e.Path, e.Idempotent, strings.Join(e.Required, ","), e.Description)
		}
		return w.Flush()
	},
}

var balanceFlags requestFlags

var balanceCmd = &cobra.Command{
	Use:   "balance <payAcctNo>",
	Short: "Query an account balance (queryeaccountbalance)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := balanceFlags.callOptions()
		if err != nil {
			return err
		}
		c, err := newClient(cfg, appLogger)
		if err != nil {
			return err
		}
		bal, err := endpoints.New(c).QueryAccountBalance(cmd.Context(), args[0], opts...)
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), bal.Response)
	},
}

var (
	bankInfoFlags  requestFlags
	bankInfoName   string
	bankInfoNumber string
)

var bankInfoCmd = &cobra.Command{
	Use:   "bankinfo",
	Short: "Look up banks by name or number (querybankinfos)",
	Long: `Look up banks in the bank directory.

Example:
  wzbank bankinfo --name 温州银行
  wzbank bankinfo --number 313333007331`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lookupType := endpoints.BankInfoByName
		switch {
		case bankInfoName != "" && bankInfoNumber != "":
			return fmt.Errorf("use either --name or --number")
		case bankInfoNumber != "":
			lookupType = endpoints.BankInfoByNumber
		case bankInfoName == "":
			return fmt.Errorf("--name or --number is required")
		}

		opts, err := bankInfoFlags.callOptions()
		if err != nil {
			return err
		}
		c, err := newClient(cfg, appLogger)
		if err != nil {
			return err
		}
		resp, err := endpoints.New(c).QueryBankInfos(cmd.Context(), lookupType, bankInfoName, bankInfoNumber, opts...)
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), resp)
	},
}

var (
	transferFlags  requestFlags
	transferParams endpoints.SingleTransfer
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Submit a single transfer (singletrans)",
	Long: `Submit a single transfer.

An idempotency key is generated when --idempotency-key is not given, so transport failures
are retried without booking twice. Reuse the printed key to retry by hand.

Example:
  wzbank transfer --pay-acct 733000120190056868 --pay-name 瓯江实验室 --amount 100.00 \
    --rcv-acct 6230910199000000001 --rcv-name 张三 --inbank-no 313333007331 \
    --order-no ORD20251202001 --reserve2 工资`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if transferFlags.idempotencyKey == "" {
			transferFlags.idempotencyKey = uuid.NewString()
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "idempotency key: %s\n", transferFlags.idempotencyKey)

		opts, err := transferFlags.callOptions()
		if err != nil {
			return err
		}
		c, err := newClient(cfg, appLogger)
		if err != nil {
			return err
		}
		receipt, err := endpoints.New(c).SingleTransfer(cmd.Context(), transferParams, opts...)
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), receipt.Response)
	},
}

func init() {
	addRequestFlags(balanceCmd, &balanceFlags)

	addRequestFlags(bankInfoCmd, &bankInfoFlags)
	bankInfoCmd.Flags().StringVar(&bankInfoName, "name", "", "bank name or part of it (type 0)")
	bankInfoCmd.Flags().StringVar(&bankInfoNumber, "number", "", "bank number (type 1)")

	addRequestFlags(transferCmd, &transferFlags)
	f := transferCmd.Flags()
	f.StringVar(&transferParams.PayAcctNo, "pay-acct", "", "paying account number [required]")
	f.StringVar(&transferParams.PayAcctName, "pay-name", "", "paying account name [required]")
	f.StringVar(&transferParams.TransAmt, "amount", "", "amount in yuan, e.g. 100.00 [required]")
	f.StringVar(&transferParams.RcvAcctNo, "rcv-acct", "", "receiving account number [required]")
	f.StringVar(&transferParams.RcvAcctName, "rcv-name", "", "receiving account name [required]")
	f.StringVar(&transferParams.InBankNo, "inbank-no", "", "receiving bank number [required]")
	f.StringVar(&transferParams.InBankName, "inbank-name", "", "receiving bank name")
	f.StringVar(&transferParams.OrderNo, "order-no", "", "order number, unique per transfer [required]")
	f.StringVar(&transferParams.CurCode, "cur-code", "1", "currency code")
	f.StringVar(&transferParams.CurType, "cur-type", "0", "currency type")
	f.StringVar(&transferParams.Remark, "remark", "", "remark")
	f.StringVar(&transferParams.Reserve1, "reserve1", "", "reserve1")
	f.StringVar(&transferParams.Reserve2, "reserve2", "", "reserve2 (purpose) [required]")
}
