package main

import (
	"fmt"
	"time"

	"github.com/odvcencio/cirrus/pkg/object"
	"github.com/odvcencio/cirrus/pkg/repo"
	"github.com/spf13/cobra"
)

func newLogCmd(a *app) *cobra.Command {
	var oneline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log [branch]",
		Short: "Show commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			head, err := r.ReadHead()
			if err != nil {
				return err
			}

			start := head.Commit
			if len(args) == 1 {
				if start, err = r.ResolveBranch(args[0]); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			if start == "" {
				fmt.Fprintln(out, "no commits yet")
				return nil
			}

			entries, err := r.Log(start, limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				decoration := buildDecoration(e.Hash, head)
				if oneline {
					if decoration != "" {
						fmt.Fprintf(out, "%s %s %s\n", e.Hash.Short(), decoration, firstLine(e.Commit.Message))
					} else {
						fmt.Fprintf(out, "%s %s\n", e.Hash.Short(), firstLine(e.Commit.Message))
					}
					continue
				}
				if decoration != "" {
					fmt.Fprintf(out, "commit %s %s\n", e.Hash, decoration)
				} else {
					fmt.Fprintf(out, "commit %s\n", e.Hash)
				}
				fmt.Fprintf(out, "Author: %s\n", e.Commit.Author)
				fmt.Fprintf(out, "Date:   %s\n", time.Unix(e.Commit.Timestamp, 0).Format("2006-01-02 15:04:05"))
				fmt.Fprintln(out)
				fmt.Fprintf(out, "    %s\n", e.Commit.Message)
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of commits to show (0 for all)")

	return cmd
}

// buildDecoration returns "(HEAD -> main)" or "(HEAD)" for the commit HEAD
// designates, "" otherwise.
func buildDecoration(h object.Hash, head repo.Head) string {
	if h != head.Commit {
		return ""
	}
	if head.Kind == repo.HeadSymbolic {
		return "(HEAD -> " + head.Branch + ")"
	}
	return "(HEAD)"
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

func newReflogCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reflog [branch]",
		Short: "Show branch tip history",
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
			entries, err := r.ReadReflog(branch, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				ts := time.Unix(e.Timestamp, 0).UTC().Format(time.RFC3339)
				fmt.Fprintf(out, "%s %s %s %s\n", e.NewHash.Short(), ts, e.Branch, e.Reason)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")
	return cmd
}
