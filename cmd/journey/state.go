package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"journey/api/internal/app"
	"journey/api/internal/journey"
	"journey/api/internal/metrics"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the journey as the configured store currently holds it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		b, err := openBackends(cmd.Context(), cfg, zerolog.Nop(), metrics.Noop())
		if err != nil {
			return err
		}
		defer b.Close()

		service := app.NewService(app.Options{
			Store:        b.docs,
			Identity:     b.identity,
			Logger:       zerolog.Nop(),
			StoreTimeout: cfg.Store.Timeout,
		})
		defer service.Close()
		service.Bootstrap(cmd.Context())

		state := service.State()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"source":       service.Source(),
				"unlockedDays": state.UnlockedThroughDay,
				"cards":        journey.Cards(state),
				"progress":     journey.Progress(state),
				"complete":     journey.IsJourneyComplete(state),
			})
		}
		printState(os.Stdout, state, service.Source(), time.Now())
		return nil
	},
}

func printState(w io.Writer, state journey.State, source string, now time.Time) {
	fmt.Fprintf(w, "JOURNEY (%s): %d of %d days unlocked, %.0f%%\n\n",
		source, state.UnlockedThroughDay, journey.TotalDays, journey.Progress(state))

	for _, card := range journey.Cards(state) {
		status := color.New(color.FgRed).Sprint("locked  ")
		switch {
		case card.Current:
			status = color.New(color.FgYellow).Sprint("current ")
		case card.Unlocked:
			status = color.New(color.FgGreen).Sprint("unlocked")
		}
		fmt.Fprintf(w, "  %s  %s %-6s %s\n", status, card.Emoji, card.Title, card.GreetingLine)
	}

	fmt.Fprintln(w)
	if next, ok := journey.NextUnlockInstant(state, now); ok {
		fmt.Fprintf(w, "Next day unlocks in %s\n", journey.FormatCountdown(next, now))
		return
	}
	fmt.Fprintln(w, color.New(color.FgGreen).Sprint("Journey complete"))
}

func init() {
	stateCmd.Flags().Bool("json", false, "print JSON")
}
