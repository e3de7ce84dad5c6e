package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newDumpCmd() *cobra.Command {
	var (
		offset int64
		length int
	)
	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "Hex dump a byte range of a file",
		Long: `Dump prints raw bytes as hex and ASCII, 16 per line, for debugging the
HDF5 structures behind a MAT-file. The superblock of a v7.3 file starts at
offset 512.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpFile(cmd.OutOrStdout(), args[0], offset, length)
		},
	}
	cmd.Flags().Int64Var(&offset, "offset", 0, "offset in file to start dumping from")
	cmd.Flags().IntVar(&length, "length", 128, "number of bytes to dump")
	return cmd
}

func dumpFile(w io.Writer, path string, offset int64, length int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if offset < 0 || offset >= size {
		return fmt.Errorf("invalid offset %d (file size %d)", offset, size)
	}
	if length < 1 {
		return fmt.Errorf("invalid length %d", length)
	}

	n := min(int64(length), size-offset)
	buf := make([]byte, n)
	read, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read at %d: %w", offset, err)
	}

	fmt.Fprintf(w, "Dumping %d bytes at offset 0x%x (%d) of %s (size: %d bytes):\n", read, offset, offset, path, size)
	hexDump(w, buf[:read], offset)
	return nil
}

// hexDump writes 16 bytes per line: address, hex with a gap after the
// eighth byte, then printable ASCII.
func hexDump(w io.Writer, buf []byte, base int64) {
	for i := 0; i < len(buf); i += 16 {
		chunk := buf[i:min(i+16, len(buf))]

		fmt.Fprintf(w, "%08x: ", base+int64(i))
		for j := 0; j < 16; j++ {
			if j < len(chunk) {
				fmt.Fprintf(w, "%02x ", chunk[j])
			} else {
				fmt.Fprint(w, "   ")
			}
			if j == 7 {
				fmt.Fprint(w, " ")
			}
		}
		fmt.Fprint(w, " |")
		for _, b := range chunk {
			if b >= 32 && b <= 126 {
				fmt.Fprintf(w, "%c", b)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprintln(w, "|")
	}
}
