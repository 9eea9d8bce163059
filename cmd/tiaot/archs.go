package main

import (
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/gogpu/taichi"
	"github.com/gogpu/taichi/capi"
)

func newArchsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archs",
		Short: "List compute libraries and the architectures they serve",
		Args:  cobra.NoArgs,
		RunE:  archsHandler,
	}
}

func archsHandler(cmd *cobra.Command, _ []string) error {
	var data [][]string
	for _, name := range capi.Registered() {
		lib, err := capi.Get(name)
		if err != nil {
			data = append(data, []string{name, "-", "unavailable: " + err.Error()})
			continue
		}
		data = append(data, []string{
			name,
			taichi.VersionFromUint32(lib.GetVersion()).String(),
			joinArchs(lib.GetAvailableArchs()),
		})
	}

	table := newTable(cmd, []string{"LIBRARY", "VERSION", "ARCHS"})
	table.AppendBulk(data)
	table.Render()
	return nil
}

func joinArchs(archs []capi.Arch) string {
	if len(archs) == 0 {
		return "none"
	}
	names := make([]string, len(archs))
	for i, a := range archs {
		names[i] = a.String()
	}
	return strings.Join(names, ",")
}

func newTable(cmd *cobra.Command, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}
