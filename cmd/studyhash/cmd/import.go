package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conorfennell/studyhash/internal/importer"
)

var (
	importProject string
	importTitle   string
)

var importCmd = &cobra.Command{
	Use:   "import [dir-or-git-url]",
	Short: "Import markdown decks into a project",
	Long: `Import registers a directory or git repository as a deck source of the
project and syncs every source registered for it. Without a path, the
registered sources of --project are synced again. Cards already stored keep
their review history; cards no longer found in any deck are reported, not
deleted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		im := importer.New(db, cfg.Import.ReposDir, logger.Named("import"))

		var (
			projectID = importProject
			report    importer.Report
		)
		if len(args) == 0 {
			if projectID == "" {
				return fmt.Errorf("import: give a path or --project to sync registered sources")
			}
			report, err = im.Resync(cmd.Context(), projectID, user)
		} else {
			if projectID == "" {
				projectID = filepath.Base(filepath.Clean(args[0]))
			}
			report, err = im.Import(cmd.Context(), importer.Source{
				Path:      args[0],
				ProjectID: projectID,
				Title:     importTitle,
				OwnerID:   user,
			})
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if report.Sources == 0 && len(report.Errors) == 0 {
			fmt.Fprintf(out, "No deck sources registered for project %s. Add one with: studyhash import <path> --project %s\n", projectID, projectID)
			return nil
		}
		fmt.Fprintf(out, "Synced project %s from %d sources: %d groups, %d cards parsed, %d new.\n",
			projectID, report.Sources, report.Groups, report.Parsed, report.Inserted)
		if len(report.Stale) > 0 {
			fmt.Fprintf(out, "%d stored cards are no longer in any deck:\n", len(report.Stale))
			for _, id := range report.Stale {
				fmt.Fprintf(out, "- %s\n", id)
			}
		}
		if len(report.Errors) > 0 {
			fmt.Fprintln(out, "\nErrors:")
			for _, e := range report.Errors {
				fmt.Fprintf(out, "- %s\n", e)
			}
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVarP(&importProject, "project", "p", "", "project id (defaults to the source's base name)")
	importCmd.Flags().StringVar(&importTitle, "title", "", "project title")
	rootCmd.AddCommand(importCmd)
}
