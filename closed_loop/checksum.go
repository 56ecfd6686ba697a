package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"adas-actuation-core/control/checksum"
)

func newChecksumCmd() *cobra.Command {
	var (
		kind   string
		idStr  string
		offset uint8
	)

	cmd := &cobra.Command{
		Use:   "checksum <payload-hex>",
		Short: "Compute the integrity byte of a frame payload",
		Long: `Compute the integrity byte for a payload given without its checksum byte.

  closed_loop checksum --kind additive --id 0x1d0 --offset 2 00000a00000000
  closed_loop checksum --kind crc8 01020304050607`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := checksum.ParseKind(kind)
			if err != nil {
				return err
			}
			id, err := strconv.ParseUint(idStr, 0, 32)
			if err != nil {
				return fmt.Errorf("invalid --id %q: %w", idStr, err)
			}
			payload, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
			if err != nil {
				return fmt.Errorf("invalid payload: %w", err)
			}

			sum := checksum.Compute(k, uint32(id), payload, offset)
			fmt.Fprintf(cmd.OutOrStdout(), "0x%02X\n", sum)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&kind, "kind", "additive", "additive|crc8")
	f.StringVar(&idStr, "id", "0", "Frame id (decimal or 0x hex)")
	f.Uint8Var(&offset, "offset", 0, "Additive checksum offset")
	return cmd
}
