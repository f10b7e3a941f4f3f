package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tplearn/tplearn-bot/config"
	"github.com/tplearn/tplearn-bot/internal/application/planner"
	"github.com/tplearn/tplearn-bot/internal/infrastructure/persistence"
	"github.com/tplearn/tplearn-bot/internal/interface/discord/presenter"
	"github.com/tplearn/tplearn-bot/pkg/logger"
	"github.com/tplearn/tplearn-bot/pkg/timeutil"
)

// WorksCmd returns the works command
func WorksCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "works [guild-id...]",
		Short: "List stored assignments per guild",
		Long: `Print the assignments kept in the configured store, soonest first.

Without arguments every guild is listed. Colours follow the urgency
shown in Discord: red is due within a day, yellow within a week.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			// Keep store logs out of the listing.
			quiet := logger.Discard()

			store, err := persistence.Open(cmd.Context(), cfg.Store, quiet)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer store.Close()

			thailand := timeutil.Thailand()
			works := planner.New(store, thailand, quiet, planner.DefaultConfig())
			if err := works.Load(cmd.Context()); err != nil {
				return err
			}

			guilds := args
			if len(guilds) == 0 {
				guilds = works.Guilds()
			}
			printWorks(cmd.OutOrStdout(), works, presenter.New(thailand, cfg.Discord.Prefix, nil), guilds)
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before the environment")
	return cmd
}

func printWorks(w io.Writer, works *planner.Planner, render *presenter.Presenter, guilds []string) {
	if len(guilds) == 0 {
		fmt.Fprintln(w, "No guilds have assignments yet.")
		return
	}

	for i, guildID := range guilds {
		if i > 0 {
			fmt.Fprintln(w)
		}
		sorted := works.GetSorted(guildID)
		fmt.Fprintf(w, "Guild %s (%d active, %d passed)\n", guildID, len(sorted), works.CountPassed(guildID))
		if len(sorted) == 0 {
			fmt.Fprintln(w, "  (no assignments)")
			continue
		}

		for _, a := range sorted {
			gap := render.GapOf(a.Date)
			c := urgencyColor(presenter.Colour(gap, a.AlreadyPassed, a.Span()))
			fmt.Fprintf(w, "  %s  %s  %s\n",
				a.Key,
				c.Sprint(presenter.Title(a.Title, gap, a.AlreadyPassed, a.Span())),
				color.New(color.Faint).Sprint(a.ReadableDate),
			)
		}
	}
}

func urgencyColor(embedColour int) *color.Color {
	switch embedColour {
	case presenter.ColourDarkRed, presenter.ColourDarkOrange:
		return color.New(color.FgRed, color.Bold)
	case presenter.ColourGold, presenter.ColourDarkGold:
		return color.New(color.FgYellow)
	case presenter.ColourTeal, presenter.ColourDarkTeal:
		return color.New(color.FgGreen)
	case presenter.ColourPurple:
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgHiBlack)
	}
}
