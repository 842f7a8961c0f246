package main

import (
	"fmt"
	"unsafe"

	"github.com/akolliasAMD/ucc/internal/mc"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

const allAttrFields = mc.AttrFieldMemType | mc.AttrFieldBaseAddress | mc.AttrFieldAllocLength

func queryCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "Allocate a device buffer and show what pointer queries report",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "size", Value: "1MiB", Usage: "Size of the device allocation"},
			&cli.StringFlag{Name: "offset", Value: "4KiB", Usage: "Offset of the interior pointer"},
		},
		Action: func(c *cli.Context) error {
			size, err := humanize.ParseBytes(c.String("size"))
			if err != nil {
				return err
			}
			offset, err := humanize.ParseBytes(c.String("offset"))
			if err != nil {
				return err
			}
			if size == 0 || offset >= size {
				return errors.Errorf("offset %s must lie inside a non-empty %s buffer",
					humanize.IBytes(offset), humanize.IBytes(size))
			}

			return e.run(c, func(mcs components) error {
				dev, err := mcs.cuda.Alloc(size)
				if err != nil {
					return err
				}
				defer mcs.cuda.Free(dev)
				hostBuf := make([]byte, 64)

				pointers := []struct {
					label string
					ptr   unsafe.Pointer
				}{
					{"device base", dev},
					{"device + " + humanize.IBytes(offset), unsafe.Add(dev, offset)},
					{"go heap", unsafe.Pointer(&hostBuf[0])},
					{"nil", nil},
				}

				table := newTable(c.App.Writer, "POINTER", "MEMORY TYPE", "BASE OFFSET", "ALLOC LENGTH", "ERROR")
				for _, p := range pointers {
					attr := mc.MemAttr{FieldMask: allAttrFields, MemType: mc.MemoryTypeUnknown}
					qerr := mcs.cuda.Query(p.ptr, 1, &attr)

					row := []string{p.label, attr.MemType.String(), "-", "-", "-"}
					if attr.BaseAddress != nil {
						row[2] = fmt.Sprintf("-%d", uintptr(p.ptr)-uintptr(attr.BaseAddress))
						row[3] = humanize.IBytes(attr.AllocLength)
					}
					if qerr != nil {
						row[4] = mc.KindName(qerr)
					}
					table.Append(row)
				}
				table.Render()
				return nil
			})
		},
	}
}
