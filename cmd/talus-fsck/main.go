// Command talus-fsck runs a consistency check over an ext2 image:
// superblock signature/state, and per-group free-block and free-inode
// counters against the superblock's totals. The checks themselves only
// read, but mounting the image updates the superblock's mount count and
// last-mount time.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/desmonHak/talus/internal/blockdev"
	"github.com/desmonHak/talus/internal/ext2"
	"github.com/desmonHak/talus/internal/kernerr"
	"github.com/desmonHak/talus/internal/kernlog"
)

func main() {
	root := &cobra.Command{
		Use:   "talus-fsck IMAGE",
		Short: "Check an ext2 image for consistency",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "talus-fsck:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	image := args[0]
	dev, err := blockdev.OpenFile(image, false, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", image, err)
	}
	defer dev.Close()

	log := kernlog.New()
	filesystem, k := ext2.Mount(dev, log)
	if k != kernerr.OK {
		return fmt.Errorf("mount %s: %v", image, k)
	}

	sb := filesystem.Superblock()
	problems := 0

	if sb.State() != ext2.StateClean {
		problems++
		fmt.Printf("superblock state is not clean (state=%d)\n", sb.State())
	}

	var freeBlocks, freeInodes, dirCount uint32
	for bg := uint32(0); bg < filesystem.GroupCount(); bg++ {
		d, k := filesystem.Descriptor(bg)
		if k != kernerr.OK {
			problems++
			fmt.Printf("group %d: cannot read descriptor: %v\n", bg, k)
			continue
		}
		freeBlocks += uint32(d.FreeBlocks())
		freeInodes += uint32(d.FreeInodes())
		dirCount += uint32(d.DirCount())
	}

	if freeBlocks != sb.UnallocatedBlocks() {
		problems++
		fmt.Printf("superblock unallocated-blocks %d disagrees with descriptor sum %d\n",
			sb.UnallocatedBlocks(), freeBlocks)
	}
	if freeInodes != sb.UnallocatedInodes() {
		problems++
		fmt.Printf("superblock unallocated-inodes %d disagrees with descriptor sum %d\n",
			sb.UnallocatedInodes(), freeInodes)
	}

	if problems == 0 {
		fmt.Printf("%s: clean (%d block groups, %d directories)\n", image, filesystem.GroupCount(), dirCount)
		return nil
	}
	return fmt.Errorf("%d problem(s) found", problems)
}
