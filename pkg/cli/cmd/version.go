package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/LENAX/proc-estimator/pkg/cli/output"
)

// 版本信息（编译时注入）
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func newVersionCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if opts.outputJSON {
				return output.PrintJSON(out, map[string]string{
					"version":    Version,
					"git_commit": GitCommit,
					"build_time": BuildTime,
					"go_version": runtime.Version(),
				})
			}
			fmt.Fprintf(out, "Proc Estimator\n")
			fmt.Fprintf(out, "  Version:    %s\n", Version)
			fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Go Version: %s\n", runtime.Version())
			return nil
		},
	}
}
