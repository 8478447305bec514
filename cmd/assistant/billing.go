package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/ohscentric/internal/client"
	"github.com/DukeRupert/ohscentric/internal/entitlement"
	"github.com/spf13/cobra"
)

var checkoutWait time.Duration

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Subscribe to the Professional plan",
	Long: `Open a hosted checkout page for the Professional plan and wait for the
browser to return. Entitlement is refreshed once checkout completes.`,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		listener, err := client.ListenForCheckoutReturn(a.logger)
		if err != nil {
			return err
		}
		defer listener.Close()

		checkout, err := a.api.CreateCheckout(ctx, listener.SuccessURL(), listener.CancelURL())
		if err != nil {
			return describeAPIError(err)
		}

		fmt.Fprintln(out, "Open this link to complete checkout:")
		fmt.Fprintf(out, "\n  %s\n\n", checkout.URL)
		fmt.Fprintln(out, "Waiting for checkout to finish...")

		waitCtx, cancel := context.WithTimeout(ctx, checkoutWait)
		defer cancel()
		result, err := listener.Wait(waitCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return errors.New("timed out waiting for checkout; run `assistant status` once payment completes")
			}
			return err
		}

		eval := a.evaluator()
		defer eval.Close()

		if result == entitlement.CheckoutCancel {
			fmt.Fprintln(out, "Checkout cancelled.")
			return nil
		}
		outcome := eval.OnCheckoutReturn(ctx, result)
		a.logger.Debug("entitlement after checkout", "outcome", outcome.String())

		fmt.Fprintln(out, "Payment received. Thank you!")
		renderStatus(out, eval.View())
		return nil
	}),
}

var billingCmd = &cobra.Command{
	Use:   "billing",
	Short: "Show the subscription and open the billing portal",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		status, err := a.api.SubscriptionStatus(ctx)
		if err != nil {
			return describeAPIError(err)
		}
		fmt.Fprintf(out, "Plan: %s\n", status.Plan)
		if status.Status != "" {
			fmt.Fprintf(out, "Subscription: %s\n", status.Status)
		}
		if status.CurrentPeriodEnd != nil {
			verb := "Renews"
			if status.CancelAtPeriodEnd {
				verb = "Ends"
			}
			fmt.Fprintf(out, "%s: %s\n", verb, status.CurrentPeriodEnd.Local().Format("2 Jan 2006"))
		}
		if status.Status == "" {
			return nil
		}

		url, err := a.api.CreatePortal(ctx, "")
		if err != nil {
			return describeAPIError(err)
		}
		fmt.Fprintf(out, "\nManage billing at:\n\n  %s\n", url)
		return nil
	}),
}

func init() {
	upgradeCmd.Flags().DurationVar(&checkoutWait, "wait", 15*time.Minute, "how long to wait for checkout to finish")
}
