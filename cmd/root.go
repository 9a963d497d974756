package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/inovacc/gitkeeper/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "A Git repository synchronization service",
	Long: `Gitkeeper keeps a registry of remote Git repositories, clones them
locally and fast-forwards them on a nightly schedule or on demand through
its HTTP API. Local history is never rewritten: diverged branches and
dirty worktrees are left untouched.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
