package main

import (
	"github.com/spf13/cobra"
)

func newShowCmd(a *app) *cobra.Command {
	var rev string
	var replica bool

	cmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Print a file as recorded in a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			source := r
			if replica {
				if source, err = a.openCloud(r, false); err != nil {
					return err
				}
			}
			commit, err := source.ResolveRevision(rev)
			if err != nil {
				return err
			}
			_, data, err := source.ReadFileAt(commit, args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&rev, "rev", "", "branch name or commit id (default HEAD)")
	cmd.Flags().BoolVar(&replica, "replica", false, "read from the cloud replica")

	return cmd
}
