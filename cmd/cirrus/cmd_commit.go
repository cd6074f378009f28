package main

import (
	"fmt"
	"os"

	"github.com/odvcencio/cirrus/pkg/repo"
	"github.com/spf13/cobra"
)

func newCommitCmd(a *app) *cobra.Command {
	var message string
	var sign bool

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record the staged changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}

			r, err := a.openRepo()
			if err != nil {
				return err
			}
			cfg, err := r.ReadConfig()
			if err != nil {
				return err
			}

			opts := repo.CommitOptions{Author: a.setting("author", cfg.Core.Author)}
			if opts.Author == "" {
				opts.Author = os.Getenv("USER")
			}
			if keyPath := a.setting("sign-key", cfg.Signing.Key); keyPath != "" || sign {
				signer, resolved, err := newSSHCommitSigner(keyPath)
				if err != nil {
					return err
				}
				opts.Signer = signer
				a.logger.WithField("key", resolved).Debug("signing commit")
			}

			h, err := r.CommitWithOptions(message, opts)
			if err != nil {
				return err
			}

			label := "HEAD"
			if head, err := r.ReadHead(); err == nil && head.Kind == repo.HeadSymbolic {
				label = head.Branch
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", label, h.Short(), message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().String("author", "", "override author (default: core.author, then $USER)")
	cmd.Flags().String("sign-key", "", "SSH private key used to sign the commit")
	cmd.Flags().BoolVar(&sign, "sign", false, "sign with signing.key or the default key in ~/.ssh")
	_ = a.v.BindPFlag("author", cmd.Flags().Lookup("author"))
	_ = a.v.BindPFlag("sign-key", cmd.Flags().Lookup("sign-key"))

	return cmd
}
