package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/odvcencio/cirrus/pkg/repo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "0.1.0-dev"

// app carries the settings shared by every subcommand. Values resolve as
// flag, then CIRRUS_* environment variable, then the repository's
// .cirrus.toml.
type app struct {
	v      *viper.Viper
	logger *logrus.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: logrus.New()}

	root := &cobra.Command{
		Use:           "cirrus",
		Short:         "Minimal version control with push to a cloud replica",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.logger.SetOutput(cmd.ErrOrStderr())
			a.logger.SetFormatter(&logrus.TextFormatter{
				FullTimestamp:   true,
				TimestampFormat: "2006-01-02 15:04:05",
			})
			if a.v.GetBool("verbose") {
				a.logger.SetLevel(logrus.DebugLevel)
			}
		},
	}

	root.PersistentFlags().String("repo", ".", "path inside the repository to operate on")
	root.PersistentFlags().String("cloud", "", "cloud replica root (overrides cloud.root)")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	a.v.SetEnvPrefix("CIRRUS")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	_ = a.v.BindPFlag("repo", root.PersistentFlags().Lookup("repo"))
	_ = a.v.BindPFlag("cloud", root.PersistentFlags().Lookup("cloud"))
	_ = a.v.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newAddCmd(a))
	root.AddCommand(newRmCmd(a))
	root.AddCommand(newResetCmd(a))
	root.AddCommand(newStatusCmd(a))
	root.AddCommand(newCommitCmd(a))
	root.AddCommand(newLogCmd(a))
	root.AddCommand(newReflogCmd(a))
	root.AddCommand(newBranchCmd(a))
	root.AddCommand(newPushCmd(a))
	root.AddCommand(newVerifyCmd(a))
	root.AddCommand(newShowCmd(a))

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cirrus %s\n", version)
		},
	}
}

// openRepo opens the local repository containing the --repo path.
func (a *app) openRepo() (*repo.Repo, error) {
	r, err := repo.Open(a.v.GetString("repo"))
	if err != nil {
		return nil, err
	}
	r.SetLogger(logrus.NewEntry(a.logger).WithField("repo", r.RootDir))
	return r, nil
}

// openCloud opens the cloud replica for r, creating its layout on first
// use. --cloud and CIRRUS_CLOUD take precedence over cloud.root.
func (a *app) openCloud(r *repo.Repo, create bool) (*repo.Repo, error) {
	root := a.v.GetString("cloud")
	if root == "" {
		var err error
		if root, err = r.CloudRoot(); err != nil {
			return nil, err
		}
	}
	if err := r.CheckCloudRoot(root); err != nil {
		return nil, err
	}
	cloud, err := repo.OpenCloud(root, create)
	if err != nil {
		return nil, err
	}
	cloud.SetLogger(logrus.NewEntry(a.logger).WithField("cloud", cloud.RootDir))
	return cloud, nil
}

// setting returns key from flags or environment, falling back to the value
// read from the repository config.
func (a *app) setting(key, fromConfig string) string {
	if v := a.v.GetString(key); v != "" {
		return v
	}
	return fromConfig
}
