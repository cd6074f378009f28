package main

import (
	"fmt"
	"path/filepath"

	"github.com/odvcencio/cirrus/pkg/repo"
	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	var opts repo.InitOptions

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.v.GetString("repo")
			if len(args) == 1 {
				path = args[0]
			}
			if cloud := a.v.GetString("cloud"); cloud != "" {
				abs, err := filepath.Abs(cloud)
				if err != nil {
					return err
				}
				opts.CloudRoot = abs
			}
			r, err := repo.InitWithOptions(path, opts)
			if err != nil {
				return err
			}
			head, err := r.ReadHead()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty repository in %s (branch %s)\n", r.RootDir, head.Branch)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.DefaultBranch, "branch", "b", "", "name of the initial branch (default \"main\")")
	cmd.Flags().StringVar(&opts.Author, "author", "", "default commit author recorded in .cirrus.toml")
	cmd.Flags().BoolVar(&opts.Compression, "compress", false, "store objects zstd-compressed")
	cmd.Flags().IntVar(&opts.CompressionLevel, "compression-level", 0, "zstd level 1-4 (default 2)")

	return cmd
}
