package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:  `peerlink`,
	Long: `peerlink coordinates direct WebRTC connections between devices for faster file transfer`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "peer-link.yaml", "path to config file")
	rootCmd.AddCommand(nodeCmd)
}
