// Command talus-mkfs formats a file as an ext2 image containing a bare
// root directory, using internal/ext2's writer side of the on-disk
// layout internal/ext2.Mount expects.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/desmonHak/talus/internal/blockdev"
	"github.com/desmonHak/talus/internal/ext2"
	"github.com/desmonHak/talus/internal/kernerr"
)

var (
	blockSize      uint32
	blocksPerGroup uint32
	inodesPerGroup uint32
	volumeName     string
)

func main() {
	root := &cobra.Command{
		Use:   "talus-mkfs IMAGE SIZE_MB",
		Short: "Format a file as an ext2 image",
		Args:  cobra.ExactArgs(2),
		RunE:  run,
	}
	root.Flags().Uint32Var(&blockSize, "block-size", 1024, "block size in bytes")
	root.Flags().Uint32Var(&blocksPerGroup, "blocks-per-group", 8192, "blocks per block group")
	root.Flags().Uint32Var(&inodesPerGroup, "inodes-per-group", 2048, "inodes per block group")
	root.Flags().StringVar(&volumeName, "volume-name", "", "volume label")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "talus-mkfs:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	path := args[0]
	var sizeMB uint64
	if _, err := fmt.Sscanf(args[1], "%d", &sizeMB); err != nil {
		return fmt.Errorf("bad size %q: %w", args[1], err)
	}

	totalBytes := sizeMB * 1024 * 1024
	dev, err := blockdev.OpenFile(path, true, int64(totalBytes))
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer dev.Close()

	opts := ext2.DefaultMkfsOptions(uint32(totalBytes / uint64(blockSize)))
	opts.BlockSize = blockSize
	opts.BlocksPerGroup = blocksPerGroup
	opts.InodesPerGroup = inodesPerGroup
	opts.VolumeName = volumeName

	if _, k := ext2.Mkfs(dev, opts); k != kernerr.OK {
		return fmt.Errorf("mkfs failed: %v", k)
	}
	fmt.Printf("formatted %s: %d MiB, %d-byte blocks\n", path, sizeMB, blockSize)
	return nil
}
