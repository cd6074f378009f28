package main

import (
	"errors"
	"fmt"

	"github.com/odvcencio/cirrus/pkg/object"
	"github.com/odvcencio/cirrus/pkg/repo"
	"github.com/spf13/cobra"
)

func newVerifyCmd(a *app) *cobra.Command {
	var signatures, replica bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify object integrity and ref connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			target := r
			if replica {
				if target, err = a.openCloud(r, false); err != nil {
					return err
				}
			}

			summary, err := target.Store.Verify(cmd.Context(), object.VerifyOptions{Concurrency: concurrency})
			if err != nil {
				return err
			}
			conn, err := target.VerifyConnectivity(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ok: verified %d object(s) (%d blob, %d tree, %d commit)\n",
				summary.Objects, summary.Blobs, summary.Trees, summary.Commits)
			fmt.Fprintf(out, "ok: %d ref(s) reach %d object(s)\n", conn.Refs, conn.Objects)

			if signatures {
				return verifySignatures(cmd, target)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&signatures, "signatures", false, "check SSH signatures along HEAD's history")
	cmd.Flags().BoolVar(&replica, "replica", false, "verify the cloud replica instead of the local repository")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "objects hashed in parallel (default GOMAXPROCS)")

	return cmd
}

func verifySignatures(cmd *cobra.Command, r *repo.Repo) error {
	head, err := r.ReadHead()
	if err != nil {
		return err
	}
	if head.Commit == "" {
		return nil
	}
	entries, err := r.Log(head.Commit, 0)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var bad int
	for _, e := range entries {
		fp, err := verifyCommitSignature(e.Commit)
		switch {
		case errors.Is(err, errUnsigned):
			fmt.Fprintf(out, "%s unsigned\n", e.Hash.Short())
		case err != nil:
			bad++
			fmt.Fprintf(out, "%s BAD: %v\n", e.Hash.Short(), err)
		default:
			fmt.Fprintf(out, "%s good signature %s\n", e.Hash.Short(), fp)
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d commit(s) with invalid signatures", bad)
	}
	return nil
}
