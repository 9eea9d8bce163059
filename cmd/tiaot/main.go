// Command tiaot inspects and runs ahead-of-time compute modules.
//
//	tiaot archs
//	tiaot inspect testdata/chess_board
//	tiaot launch testdata/chess_board --graph g_run --args args.yaml --png board.png
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/taichi"
	_ "github.com/gogpu/taichi/capi/host"
	_ "github.com/gogpu/taichi/capi/native"
	_ "github.com/gogpu/taichi/capi/wgpu"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tiaot",
		Short: "Inspect and run ahead-of-time compute modules",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				taichi.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug})))
			}
		},
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Log runtime activity to stderr")

	root.AddCommand(newArchsCmd(), newInspectCmd(), newLaunchCmd())
	return root
}
