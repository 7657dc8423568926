package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"opay/jsonx"
	"opay/logx"
)

type CreateConfig struct {
	Sender   string
	Receiver string
	Amount   string
}

var createConfig CreateConfig

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create [flags]",
	Short: "Create and queue a signed offline transaction",
	Long: `Builds a signed payment instruction completely offline: generates a
fresh nonce, signs the canonical payload with the sender's local key and
stores it in the durable pending queue. The printed JSON is the exact
wire payload, suitable for rendering as a visual code.

Examples:
  # Queue a 500.00 payment to user u2
  opay create -r u2 -a 500.00`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := createTransaction(createConfig); err != nil {
			logx.Error("CREATE CLI", err)
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVarP(&createConfig.Sender, "sender", "s", "", "sender user id (defaults to configured user)")
	createCmd.Flags().StringVarP(&createConfig.Receiver, "receiver", "r", "", "receiver user id")
	createCmd.Flags().StringVarP(&createConfig.Amount, "amount", "a", "", "amount to send")
	createCmd.MarkFlagRequired("receiver")
	createCmd.MarkFlagRequired("amount")
}

func createTransaction(cfg CreateConfig) error {
	comps, err := buildComponents()
	if err != nil {
		return err
	}
	defer comps.Close()

	sender := cfg.Sender
	if sender == "" {
		sender = comps.cfg.UserID
	}

	amount, err := decimal.NewFromString(cfg.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q", cfg.Amount)
	}

	payload, err := comps.engine.CreateOfflineTransaction(context.Background(), sender, cfg.Receiver, amount)
	if err != nil {
		return err
	}

	out, err := jsonx.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
