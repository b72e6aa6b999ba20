package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/studyhash/internal/domain"
)

var (
	agendaProject string
	agendaDays    int
)

var agendaCmd = &cobra.Command{
	Use:   "agenda",
	Short: "Show due and new cards per group and the coming days' load",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		svc, err := newService()
		if err != nil {
			return err
		}
		days := agendaDays
		if days == 0 {
			days = cfg.Agenda.Days
		}

		var (
			groups []domain.AgendaGroupRow
			load   []domain.AgendaDayRow
		)
		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			var err error
			groups, err = svc.AgendaGroupCounts(ctx, user, agendaProject)
			return err
		})
		g.Go(func() error {
			var err error
			load, err = svc.AgendaDueByDay(ctx, user, agendaProject, days)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "GROUP\tNEW\tLEARNING\tREVIEW\tTOTAL\tNEXT DUE")
		for _, r := range groups {
			next := "-"
			if r.NextDueAt != nil {
				next = r.NextDueAt.In(svc.Location()).Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n", r.GroupTitle, r.NewCount, r.DueLearning, r.DueReview, r.TotalCards, next)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "DAY\tLEARNING\tREVIEW\tTOTAL")
		for _, r := range load {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", r.Day, r.DueLearning, r.DueReview, r.Total())
		}
		return w.Flush()
	},
}

func init() {
	agendaCmd.Flags().StringVarP(&agendaProject, "project", "p", "", "project id")
	agendaCmd.Flags().IntVar(&agendaDays, "days", 0, "days to show (defaults to agenda.days)")
	_ = agendaCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(agendaCmd)
}
