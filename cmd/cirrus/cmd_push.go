package main

import (
	"errors"
	"fmt"

	"github.com/odvcencio/cirrus/pkg/remote"
	"github.com/odvcencio/cirrus/pkg/repo"
	"github.com/spf13/cobra"
)

func newPushCmd(a *app) *cobra.Command {
	var force bool
	var dryRun bool
	var all bool

	cmd := &cobra.Command{
		Use:   "push [branch]",
		Short: "Copy a branch and its objects to the cloud replica",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			branch := ""
			if len(args) == 1 {
				branch = args[0]
			}
			if all && branch != "" {
				return errors.New("--all takes no branch argument")
			}
			if dryRun {
				if all {
					return compareAll(cmd, a, r)
				}
				return comparePush(cmd, a, r, branch)
			}

			cloud, err := a.openCloud(r, true)
			if err != nil {
				return err
			}
			opts := remote.PushOptions{Branch: branch, Force: force}
			var results []*remote.PushResult
			if all {
				results, err = remote.PushAll(cmd.Context(), r, cloud, opts)
			} else {
				var res *remote.PushResult
				if res, err = remote.Push(cmd.Context(), r, cloud, opts); err == nil {
					results = append(results, res)
				}
			}
			for _, res := range results {
				printPushResult(cmd, res)
			}
			if err != nil {
				if errors.Is(err, remote.ErrNonFastForward) {
					return fmt.Errorf("%w (use --force to overwrite)", err)
				}
				return err
			}
			if all && len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no branches with commits to push")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "allow non-fast-forward update")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what a push would do without writing")
	cmd.Flags().BoolVar(&all, "all", false, "push every branch that has commits")
	return cmd
}

func printPushResult(cmd *cobra.Command, res *remote.PushResult) {
	out := cmd.OutOrStdout()
	switch {
	case res.UpToDate:
		fmt.Fprintf(out, "Everything up-to-date (%s at %s)\n", res.Branch, res.New.Short())
	case res.Created:
		fmt.Fprintf(out, "pushed %s: [new branch] %s (%d objects, %d bytes)\n", res.Branch, res.New.Short(), res.Objects, res.Bytes)
	default:
		fmt.Fprintf(out, "pushed %s: %s..%s (%d objects, %d bytes)\n", res.Branch, res.Old.Short(), res.New.Short(), res.Objects, res.Bytes)
	}
}

func compareAll(cmd *cobra.Command, a *app, r *repo.Repo) error {
	branches, err := r.ListBranches()
	if err != nil {
		return err
	}
	for _, b := range branches {
		if b.Tip == "" {
			continue
		}
		if err := comparePush(cmd, a, r, b.Name); err != nil {
			return err
		}
	}
	return nil
}

func comparePush(cmd *cobra.Command, a *app, r *repo.Repo, branch string) error {
	out := cmd.OutOrStdout()
	cloud, err := a.openCloud(r, false)
	if errors.Is(err, repo.ErrNotARepository) {
		fmt.Fprintln(out, "cloud replica not initialized; push would create it")
		return nil
	}
	if err != nil {
		return err
	}
	cmp, err := remote.Compare(r, cloud, branch)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s (local %s, cloud %s, %d objects to send)\n",
		cmp.Branch, cmp.State, cmp.Local.Short(), displayTip(cmp.Cloud.Short()), cmp.Missing)
	return nil
}

func displayTip(short string) string {
	if short == "" {
		return "none"
	}
	return short
}
