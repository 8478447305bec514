// Command assistant is the terminal front end for the workplace health and
// safety assistant. It signs subscribers in, gates each question on their
// entitlement and walks them through upgrading when the allowance runs out.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags)
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "assistant",
	Short:         "Ask workplace health and safety questions from the terminal",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return chatCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetPasswordCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(billingCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(resourcesCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
