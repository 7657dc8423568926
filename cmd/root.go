package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"opay/logx"
)

var configPath string
var tuningPath string

var rootCmd = &cobra.Command{
	Use:   "opay",
	Short: "Offline payment agent CLI",
	Long:  "Command line interface for running and managing the opay offline payment agent.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/agent.yml", "agent config file")
	rootCmd.PersistentFlags().StringVar(&tuningPath, "tuning", "config/tuning.ini", "tuning config file")
}
