package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/common-nighthawk/go-figure"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// formatRuntimeVersion renders 12020 as "12.2".
func formatRuntimeVersion(v int) string {
	return fmt.Sprintf("%d.%d", v/1000, (v%1000)/10)
}

func infoCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show the memory components and the CUDA launch configuration",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-banner", Usage: "Skip the banner"},
		},
		Action: func(c *cli.Context) error {
			return e.run(c, func(mcs components) error {
				w := c.App.Writer
				if !c.Bool("no-banner") {
					figure.Write(w, figure.NewFigure("ucc mc", "", true))
					fmt.Fprintln(w)
				}

				table := newTable(w, "COMPONENT", "MEMORY TYPE", "REFS")
				for _, shared := range []*mc.Shared{mcs.Host, mcs.CUDA} {
					comp := shared.Component()
					table.Append([]string{comp.Name(), comp.Type().String(), strconv.Itoa(shared.Refs())})
				}
				table.Render()
				fmt.Fprintln(w)

				settings := newTable(w, "SETTING", "VALUE")
				settings.AppendBulk([][]string{
					{"driver", e.cfg.MC.CUDA.Driver},
					{"runtime version", formatRuntimeVersion(mcs.cuda.RuntimeVersion())},
					{"reduce threads per block", strconv.Itoa(mcs.cuda.ReduceNumThreads())},
					{"reduce blocks", mcs.cuda.ReduceNumBlocks().String()},
				})
				settings.Render()
				return nil
			})
		},
	}
}
