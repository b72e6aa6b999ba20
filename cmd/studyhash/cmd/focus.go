package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/studyhash/internal/focus"
)

var focusProject string

var focusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Run one focus interval and the break that follows it",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		svc, err := newService()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if focusProject != "" {
			if err := svc.AuthorizeProject(ctx, user, focusProject); err != nil {
				return err
			}
		}
		timer, err := svc.NewTimer(ctx, user)
		if err != nil {
			return err
		}
		if err := timer.Start(focusProject); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		show := func(s focus.Snapshot) {
			fmt.Fprintf(out, "%s  %s remaining  (cycles: %d)\n", s.Phase, s.Remaining.Round(time.Second), s.Cycles)
		}
		show(timer.Snapshot())

		runCtx, done := context.WithCancel(ctx)
		defer done()
		err = timer.Run(runCtx, time.Second, func(s focus.Snapshot) {
			show(s)
			if s.Phase == focus.Idle {
				done()
			}
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	focusCmd.Flags().StringVarP(&focusProject, "project", "p", "", "project the focus time is spent on")
	rootCmd.AddCommand(focusCmd)
}
