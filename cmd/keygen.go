package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"opay/logx"
)

var keygenUser string

// keygenCmd represents the keygen command
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Provision the device signing keypair for a user",
	Long: `Generates the per-user P-256 signing keypair if none exists yet and
registers the public key with the remote system. Provisioning is
idempotent: an existing keypair is left untouched and nothing is
re-registered. Requires connectivity only when a new key is created.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := provisionKeys(keygenUser); err != nil {
			logx.Error("KEYGEN CLI", err)
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keygenUser, "user", "u", "", "user id (defaults to configured user)")
}

func provisionKeys(userID string) error {
	comps, err := buildComponents()
	if err != nil {
		return err
	}
	defer comps.Close()

	if userID == "" {
		userID = comps.cfg.UserID
	}

	created, err := comps.engine.ProvisionKeys(context.Background(), userID)
	if err != nil && !created {
		return err
	}
	if !created {
		fmt.Printf("Keypair for %s already exists, nothing to do\n", userID)
		return nil
	}

	pubDER, perr := comps.keyStore.PublicKey(userID)
	if perr != nil {
		return perr
	}
	fmt.Printf("Generated keypair for %s\nPublic key (SPKI, base64): %s\n", userID, base64.StdEncoding.EncodeToString(pubDER))
	if err != nil {
		fmt.Println("Warning: public key registration failed, run keygen again while online")
	}
	return nil
}
