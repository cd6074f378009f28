package main

import (
	"fmt"

	"github.com/odvcencio/cirrus/pkg/repo"
	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	var stagedOnly bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show HEAD and the staged changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			head, err := r.ReadHead()
			if err != nil {
				return err
			}
			entries, err := r.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch head.Kind {
			case repo.HeadDetached:
				fmt.Fprintf(out, "HEAD detached at %s\n", head.Commit.Short())
			case repo.HeadUnborn:
				fmt.Fprintf(out, "On branch %s (no commits yet)\n", head.Branch)
			default:
				fmt.Fprintf(out, "On branch %s\n", head.Branch)
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, "nothing staged")
			} else {
				fmt.Fprintln(out, "Changes to be committed:")
				for _, e := range entries {
					fmt.Fprintf(out, "  %-10s %s\n", e.Status.String()+":", e.Path)
				}
			}

			if stagedOnly {
				return nil
			}
			worktree, err := r.WorktreeStatus()
			if err != nil {
				return err
			}
			var changed, untracked []repo.WorktreeEntry
			for _, e := range worktree {
				if e.State == repo.WorktreeUntracked {
					untracked = append(untracked, e)
				} else {
					changed = append(changed, e)
				}
			}
			if len(changed) > 0 {
				fmt.Fprintln(out, "Changes not staged for commit:")
				for _, e := range changed {
					fmt.Fprintf(out, "  %-10s %s\n", e.State.String()+":", e.Path)
				}
			}
			if len(untracked) > 0 {
				fmt.Fprintln(out, "Untracked files:")
				for _, e := range untracked {
					fmt.Fprintf(out, "  %s\n", e.Path)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&stagedOnly, "staged", false, "only show staged changes")

	return cmd
}
