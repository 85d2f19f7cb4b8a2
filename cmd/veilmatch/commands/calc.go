package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/veilmatch/internal/milestone"
	"github.com/MikeSquared-Agency/veilmatch/internal/reveal"
	"github.com/MikeSquared-Agency/veilmatch/internal/service"
	"github.com/MikeSquared-Agency/veilmatch/internal/trust"
)

func scoreCmd() *cobra.Command {
	var (
		current int
		tally   trust.ActionTally
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute the next trust score for a tally of actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			next, err := trust.NextScore(current, tally)
			if err != nil {
				return err
			}
			level := trust.LevelFromScore(next)
			fmt.Fprintf(cmd.OutOrStdout(), "score %d -> %d (delta %+d, reveal %s)\n",
				current, next, next-current, level.Label())
			return nil
		},
	}
	cmd.Flags().IntVar(&current, "current", 25, "current trust score")
	cmd.Flags().IntVar(&tally.DaysClean, "days-clean", 0, "days clean")
	cmd.Flags().IntVar(&tally.HelpfulVotes, "helpful", 0, "helpful votes received")
	cmd.Flags().IntVar(&tally.Reports, "reports", 0, "reports received")
	cmd.Flags().IntVar(&tally.Infractions, "infractions", 0, "infractions recorded")
	return cmd
}

func gridCmd() *cobra.Command {
	var (
		score int
		size  int
		tier  int
	)
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Draw the reveal grid for a trust score",
		RunE: func(cmd *cobra.Command, args []string) error {
			if size == 0 {
				size = cfg.GridSize
			}
			state, err := reveal.StateForScore(score, size)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "score %d, level %s, %d/%d cells revealed\n",
				score, state.Level.Label(), len(state.Revealed), size*size)
			writeMask(out, state)

			if cmd.Flags().Changed("tier") {
				t, err := reveal.AuthorizeTier(tier, score)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "tier %d: %s\n", t, t.Clip().CSS())
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&score, "score", 25, "trust score")
	cmd.Flags().IntVar(&size, "size", 0, "grid size (default VEIL_GRID_SIZE)")
	cmd.Flags().IntVar(&tier, "tier", 0, "also show the clip region for this reveal percent")
	return cmd
}

// writeMask draws revealed cells as '#' and hidden ones as '.'.
func writeMask(w io.Writer, state reveal.State) {
	for _, row := range state.Mask() {
		var b strings.Builder
		for _, revealed := range row {
			if revealed {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		fmt.Fprintln(w, b.String())
	}
}

func milestonesCmd() *cobra.Command {
	var (
		since string
		days  int
	)
	cmd := &cobra.Command{
		Use:   "milestones",
		Short: "Show milestone progress for a sobriety date or day count",
		RunE: func(cmd *cobra.Command, args []string) error {
			if since != "" {
				ref, err := time.Parse(time.DateOnly, since)
				if err != nil {
					return fmt.Errorf("parse --since: %w", err)
				}
				days, err = milestone.DaysSober(&ref, time.Now().UTC())
				if err != nil {
					return err
				}
			}
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d days\n", days)
			for _, m := range service.Ladder(milestone.DefaultCatalog, days, nil) {
				mark := " "
				if m.Earned {
					mark = "x"
				}
				fmt.Fprintf(out, "[%s] %-8s %5d  %s\n", mark, m.ID, m.Days, m.Title)
			}
			if next, ok := milestone.DefaultCatalog.Next(days); ok {
				fmt.Fprintf(out, "next: %s in %d days\n", next.Title, next.Days-days)
			} else {
				fmt.Fprintln(out, "all milestones earned")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "sobriety date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&days, "days", 0, "days sober, when --since is not given")
	return cmd
}
