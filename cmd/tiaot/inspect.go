package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/taichi/internal/manifest"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect MODULE",
		Short: "Show the kernels and compute graphs of a module",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectHandler,
	}
}

func inspectHandler(cmd *cobra.Command, args []string) error {
	b, err := manifest.Open(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Module %s (version %d, arch %s)\n\n", args[0], b.Version, b.Arch)

	var kernels [][]string
	for _, k := range b.Kernels {
		kernels = append(kernels, []string{k.Name, k.Source, k.Host, formatArgs(k.Args)})
	}
	table := newTable(cmd, []string{"KERNEL", "SHADER", "HOST", "ARGS"})
	table.AppendBulk(kernels)
	table.Render()
	fmt.Fprintln(out)

	var graphs [][]string
	for _, g := range b.Graphs {
		steps := make([]string, len(g.Dispatches))
		for i, d := range g.Dispatches {
			steps[i] = fmt.Sprintf("%s(%s)", d.Kernel, strings.Join(d.Args, ","))
		}
		graphs = append(graphs, []string{g.Name, formatArgs(g.Args), strings.Join(steps, " -> ")})
	}
	table = newTable(cmd, []string{"GRAPH", "ARGS", "DISPATCHES"})
	table.AppendBulk(graphs)
	table.Render()
	return nil
}

func formatArgs(args []manifest.Arg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		s := a.Name + ":" + a.Kind
		if a.DType != "" {
			s += "<" + a.DType + ">"
		}
		if a.NDim > 0 {
			s += fmt.Sprintf("[%dd]", a.NDim)
		}
		parts[i] = s
	}
	return strings.Join(parts, " ")
}
