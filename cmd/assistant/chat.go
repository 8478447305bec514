package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/DukeRupert/ohscentric/internal/client"
	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/DukeRupert/ohscentric/internal/entitlement"
	"github.com/spf13/cobra"
)

const welcomeText = "Hi, I can answer questions about work health and safety duties, codes of practice and regulations. What would you like to know?"

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation. Each question is checked against
your daily allowance before it is sent.

Commands inside the conversation:
  /status   show plan and remaining messages
  /clear    clear the saved conversation
  /quit     leave`,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		if _, ok := a.creds.Credential(); !ok {
			return errors.New("you are not signed in; run `assistant login` first")
		}

		session, first := entitlement.Begin(cmd.Context(), a.source, a.creds, entitlement.SessionOptions{
			PollInterval:   a.cfg.RefreshInterval,
			RefreshTimeout: a.cfg.RefreshTimeout,
			Logger:         a.logger,
		})
		defer session.End()
		a.logger.Debug("initial entitlement", "outcome", first.String())

		stopVisibility := watchVisibility(session.Poller)
		defer stopVisibility()

		c := &conversation{
			api:     a.api,
			answers: a.answers,
			eval:    session.Evaluator,
			out:     cmd.OutOrStdout(),
			errOut:  cmd.ErrOrStderr(),
			window:  domain.DefaultHistoryWindow,
		}
		go c.watchNotices(cmd.Context())
		return c.run(cmd.Context(), cmd.InOrStdin())
	}),
}

// conversation is one interactive chat session.
type conversation struct {
	api     *client.Client
	answers completer
	eval    *entitlement.Evaluator
	out     io.Writer
	errOut  io.Writer
	window  int
	turns   []domain.ConversationTurn
}

func (c *conversation) run(ctx context.Context, in io.Reader) error {
	c.turns = append(c.turns, domain.ConversationTurn{
		Sender:    domain.SenderAssistant,
		Text:      welcomeText,
		Timestamp: time.Now(),
		Welcome:   true,
	})
	fmt.Fprintln(c.out, welcomeText)
	renderStatus(c.out, c.eval.View())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/status":
			c.eval.Refresh(ctx)
			renderStatus(c.out, c.eval.View())
			continue
		case "/clear":
			if err := c.api.ClearHistory(ctx); err != nil {
				fmt.Fprintln(c.errOut, describeAPIError(err))
				continue
			}
			c.turns = c.turns[:1]
			fmt.Fprintln(c.out, "Conversation cleared.")
			continue
		}

		if err := c.ask(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(c.errOut, err)
		}
	}
}

// ask sends one question if the current entitlement allows it.
func (c *conversation) ask(ctx context.Context, question string) error {
	view := c.eval.View()
	if !view.CanSendMessage() {
		renderStatus(c.out, view)
		return nil
	}

	history := domain.HistoryWindow(c.turns, c.window)
	c.turns = append(c.turns, domain.ConversationTurn{Sender: domain.SenderUser, Text: question, Timestamp: time.Now()})

	fmt.Fprintln(c.out)
	answer, err := c.answers.Complete(ctx, question, history, func(delta string) {
		fmt.Fprint(c.out, delta)
	})
	fmt.Fprintln(c.out)
	if err != nil {
		c.turns = c.turns[:len(c.turns)-1]
		switch client.ErrorCode(err) {
		case domain.EPAYMENT, domain.EUNAUTHORIZED:
			// The server disagrees with the held entitlement; re-read it.
			c.eval.Refresh(ctx)
			renderStatus(c.out, c.eval.View())
			return nil
		}
		return describeAPIError(err)
	}

	c.turns = append(c.turns, domain.ConversationTurn{
		Sender:    domain.SenderAssistant,
		Text:      answer.Answer,
		Timestamp: time.Now(),
		Sources:   answer.Sources,
	})
	renderSources(c.out, answer.Sources)

	c.eval.OnMessageSent(ctx)
	view = c.eval.View()
	fmt.Fprintf(c.out, "(%s)\n", view.StatusLabel())
	if view.ShouldOfferUpgrade() {
		renderStatus(c.out, view)
	}
	return nil
}

// watchNotices reports connectivity and sign-in changes raised by
// background refreshes.
func (c *conversation) watchNotices(ctx context.Context) {
	views, cancel := c.eval.Subscribe()
	defer cancel()

	last := c.eval.View().Notice()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-views:
			if !ok {
				return
			}
			n := v.Notice()
			if n == last {
				continue
			}
			last = n
			switch n {
			case entitlement.NoticeConnectivity, entitlement.NoticeReauthenticate:
				fmt.Fprintf(c.errOut, "\n%s\n", v.Message())
			}
		}
	}
}
