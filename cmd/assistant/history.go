package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the saved conversation",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		t, err := a.api.History(cmd.Context())
		if err != nil {
			return describeAPIError(err)
		}
		renderTranscript(cmd.OutOrStdout(), t)
		return nil
	}),
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved conversation",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		if err := a.api.ClearHistory(cmd.Context()); err != nil {
			return describeAPIError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Conversation cleared.")
		return nil
	}),
}

var resourcesCmd = &cobra.Command{
	Use:   "resources [search]",
	Short: "List regulators, codes of practice and guidance",
	Example: `  assistant resources
  assistant resources first aid`,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		categories, err := a.api.Resources(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return describeAPIError(err)
		}
		renderResources(cmd.OutOrStdout(), categories)
		return nil
	}),
}

func init() {
	historyCmd.AddCommand(historyClearCmd)
}
