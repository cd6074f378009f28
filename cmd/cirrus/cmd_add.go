package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <paths...>",
		Short: "Stage files for the next commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			return r.Add(paths)
		},
	}
}

func newRmCmd(a *app) *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "rm <paths...>",
		Short: "Stage the removal of tracked files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			removed, err := r.Remove(paths)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rel := range removed {
				if !cached {
					if err := os.Remove(filepath.Join(r.RootDir, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
						return fmt.Errorf("rm %s: %w", rel, err)
					}
				}
				fmt.Fprintf(out, "rm '%s'\n", rel)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "only unstage; keep the working file")

	return cmd
}

// absPaths resolves command-line paths against the working directory so
// they reach the repository unchanged regardless of --repo.
func absPaths(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, p := range args {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [paths...]",
		Short: "Unstage paths, or everything, back to HEAD",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openRepo()
			if err != nil {
				return err
			}
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			unstaged, err := r.Reset(paths)
			if err != nil {
				return err
			}
			for _, p := range unstaged {
				fmt.Fprintf(cmd.OutOrStdout(), "unstaged '%s'\n", p)
			}
			return nil
		},
	}
}
