package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/DukeRupert/ohscentric/internal/client"
	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginEmail   string
	registerName string
	resetToken   string
)

var readPassword = term.ReadPassword

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and start a free trial",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		in := bufio.NewReader(cmd.InOrStdin())
		name, err := promptDefault(cmd, in, "Name: ", registerName)
		if err != nil {
			return err
		}
		email, err := promptDefault(cmd, in, "Email: ", loginEmail)
		if err != nil {
			return err
		}
		password, err := promptPassword(cmd, "Password (8+ characters): ")
		if err != nil {
			return err
		}

		user, err := a.api.Register(cmd.Context(), name, email, password)
		if err != nil {
			return describeAPIError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s. Your trial has started.\n", displayName(user))
		return printStatus(cmd, a)
	}),
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to your account",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		email, err := promptDefault(cmd, bufio.NewReader(cmd.InOrStdin()), "Email: ", loginEmail)
		if err != nil {
			return err
		}
		password, err := promptPassword(cmd, "Password: ")
		if err != nil {
			return err
		}

		user, err := a.api.Login(cmd.Context(), email, password)
		if err != nil {
			return describeAPIError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", user.Email)
		return printStatus(cmd, a)
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored credential",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		if err := a.api.Logout(cmd.Context()); err != nil {
			return describeAPIError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show plan, remaining messages and trial days",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		printAccount(cmd, a.api)
		return printStatus(cmd, a)
	}),
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Email a reset token, or redeem one with --token",
	Long: `Without --token, asks the API to email a password reset token to the
account. Run the command again with --token to choose a new password.`,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		return resetPassword(cmd, a.api, bufio.NewReader(cmd.InOrStdin()), loginEmail, resetToken)
	}),
}

func init() {
	registerCmd.Flags().StringVar(&registerName, "name", "", "display name")
	registerCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	resetPasswordCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	resetPasswordCmd.Flags().StringVar(&resetToken, "token", "", "reset token from the email")
}

func resetPassword(cmd *cobra.Command, api *client.Client, in *bufio.Reader, email, token string) error {
	out := cmd.OutOrStdout()

	if token == "" {
		email, err := promptDefault(cmd, in, "Email: ", email)
		if err != nil {
			return err
		}
		if err := api.ForgotPassword(cmd.Context(), email); err != nil {
			return describeAPIError(err)
		}
		fmt.Fprintln(out, "If an account exists for that email, a reset token is on its way.")
		fmt.Fprintln(out, "It expires in one hour. Redeem it with: assistant reset-password --token <token>")
		return nil
	}

	password, err := promptPassword(cmd, "New password (8+ characters): ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword(cmd, "Repeat new password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	if err := api.ResetPassword(cmd.Context(), strings.TrimSpace(token), password); err != nil {
		if client.ErrorCode(err) == domain.ENOTFOUND {
			return errors.New("this reset token is no longer valid; request a new one with `assistant reset-password`")
		}
		return describeAPIError(err)
	}
	fmt.Fprintln(out, "Password changed. You have been signed out everywhere; sign in with: assistant login")
	return nil
}

// printStatus refreshes entitlement once and prints the result.
func printStatus(cmd *cobra.Command, a *app) error {
	eval := a.evaluator()
	defer eval.Close()

	eval.Refresh(cmd.Context())
	renderStatus(cmd.OutOrStdout(), eval.View())
	return nil
}

// printAccount confirms the stored credential with the API and names its
// owner. A rejected credential is left to printStatus to report.
func printAccount(cmd *cobra.Command, api *client.Client) {
	user, err := api.Verify(cmd.Context())
	switch {
	case err == nil:
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s).\n", user.Email, displayName(user))
	case errors.Is(err, client.ErrNotLoggedIn):
		fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
	case client.ErrorCode(err) == domain.EUNAUTHORIZED:
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "Could not confirm your account: %v\n", err)
	}
}

func promptDefault(cmd *cobra.Command, in *bufio.Reader, prompt, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(cmd *cobra.Command, prompt string) (string, error) {
	if pass := os.Getenv("OHSCENTRIC_PASSWORD"); pass != "" {
		return pass, nil
	}
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	b, err := readPassword(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func displayName(u *client.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
