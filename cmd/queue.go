package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"opay/jsonx"
	"opay/logx"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or reset the local pending transaction queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every not-yet-confirmed transaction",
	Run: func(cmd *cobra.Command, args []string) {
		if err := listQueue(); err != nil {
			logx.Error("QUEUE CLI", err)
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every queued transaction (local-state reset)",
	Long: `Administrative reset of the durable pending queue. Cleared
transactions are gone for good; they will never reach the verifier.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := clearQueue(); err != nil {
			logx.Error("QUEUE CLI", err)
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueClearCmd)
}

func listQueue() error {
	comps, err := buildComponents()
	if err != nil {
		return err
	}
	defer comps.Close()

	payloads, err := comps.pending.ListAll()
	if err != nil {
		return err
	}
	if len(payloads) == 0 {
		fmt.Println("Pending queue is empty")
		return nil
	}

	out, err := jsonx.MarshalIndent(payloads, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func clearQueue() error {
	comps, err := buildComponents()
	if err != nil {
		return err
	}
	defer comps.Close()

	if err := comps.pending.ClearAll(); err != nil {
		return err
	}
	fmt.Println("Pending queue cleared")
	return nil
}
