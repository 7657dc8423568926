package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"opay/logx"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload the pending transaction batch to the verifier now",
	Run: func(cmd *cobra.Command, args []string) {
		if err := syncNow(); err != nil {
			logx.Error("SYNC CLI", err)
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func syncNow() error {
	comps, err := buildComponents()
	if err != nil {
		return err
	}
	defer comps.Close()

	before, err := comps.pending.Len()
	if err != nil {
		return err
	}
	if before == 0 {
		fmt.Println("Pending queue is empty, nothing to sync")
		return nil
	}

	if err := comps.engine.SyncPending(context.Background()); err != nil {
		return err
	}

	after, err := comps.pending.Len()
	if err != nil {
		return err
	}
	fmt.Printf("Synced %d of %d pending transactions, %d remaining\n", before-after, before, after)
	return nil
}
