package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/DukeRupert/ohscentric/internal/client"
	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/DukeRupert/ohscentric/internal/entitlement"
	"github.com/DukeRupert/ohscentric/internal/resources"
)

// renderStatus prints the status line, trial banner and any notice for v.
func renderStatus(w io.Writer, v entitlement.View) {
	if v.Record != nil {
		fmt.Fprintf(w, "Plan: %s\n", v.Record.Plan)
		fmt.Fprintf(w, "Status: %s\n", v.StatusLabel())
		if banner, ok := v.TrialBanner(); ok {
			fmt.Fprintf(w, "Trial: %s\n", banner)
		}
	}
	if msg := v.Message(); msg != "" {
		fmt.Fprintln(w, msg)
	}
	if v.ShouldOfferUpgrade() {
		fmt.Fprintln(w, "Run `assistant upgrade` to subscribe to the Professional plan.")
	}
}

// describeAPIError turns API failures into messages for the terminal.
func describeAPIError(err error) error {
	if errors.Is(err, client.ErrNotLoggedIn) {
		return errors.New("you are not signed in; run `assistant login` first")
	}
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	if len(apiErr.Fields) == 0 {
		return apiErr
	}
	keys := make([]string, 0, len(apiErr.Fields))
	for k := range apiErr.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(apiErr.Message)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %s", k, apiErr.Fields[k])
	}
	return errors.New(b.String())
}

func renderResources(w io.Writer, categories []resources.Category) {
	if len(categories) == 0 {
		fmt.Fprintln(w, "No matching resources.")
		return
	}
	for i, c := range categories {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, c.Title)
		if c.Description != "" {
			fmt.Fprintf(w, "  %s\n", c.Description)
		}
		for _, l := range c.Links {
			line := "  - " + l.Name
			if l.URL != "" {
				line += " <" + l.URL + ">"
			}
			fmt.Fprintln(w, line)
		}
	}
}

func renderTranscript(w io.Writer, t *domain.Transcript) {
	if t == nil || len(t.Turns) == 0 {
		fmt.Fprintln(w, "No saved conversation.")
		return
	}
	for _, turn := range t.Turns {
		label := "You"
		if turn.Sender == domain.SenderAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", turn.Timestamp.Local().Format("2006-01-02 15:04"), label, turn.Text)
		renderSources(w, turn.Sources)
	}
}

func renderSources(w io.Writer, sources []string) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w, "Sources:")
	for _, s := range sources {
		fmt.Fprintf(w, "  - %s\n", s)
	}
}
