package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBranchCmd(a *app) *cobra.Command {
	var create, switchTo bool
	var deleteBranch string

	cmd := &cobra.Command{
		Use:   "branch [name]",
		Short: "List, create, switch, or delete branches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if deleteBranch != "" {
				if err := r.DeleteBranch(deleteBranch); err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted branch '%s'\n", deleteBranch)
				return nil
			}

			if len(args) == 1 {
				name := args[0]
				if create || !switchTo {
					if err := r.CreateBranch(name); err != nil {
						return err
					}
					fmt.Fprintf(out, "created branch '%s'\n", name)
				}
				if switchTo {
					if err := r.Switch(name); err != nil {
						return err
					}
					head, err := r.ReadHead()
					if err != nil {
						return err
					}
					// Working files are left as they are.
					fmt.Fprintf(out, "switched to branch '%s' (%s)\n", name, displayTip(head.Commit.Short()))
				}
				return nil
			}
			if create || switchTo {
				return fmt.Errorf("branch name required")
			}

			branches, err := r.ListBranches()
			if err != nil {
				return err
			}
			current, err := r.CurrentBranch()
			if err != nil {
				return err
			}
			for _, b := range branches {
				marker := "  "
				if b.Name == current {
					marker = "* "
				}
				fmt.Fprintf(out, "%s%s %s\n", marker, b.Name, displayTip(b.Tip.Short()))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&create, "create", "c", false, "create the branch at HEAD's commit")
	cmd.Flags().BoolVarP(&switchTo, "switch", "s", false, "attach HEAD to the branch")
	cmd.Flags().StringVarP(&deleteBranch, "delete", "d", "", "delete the named branch")

	return cmd
}
