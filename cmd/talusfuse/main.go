// Command talusfuse mounts an ext2 image at a directory via FUSE,
// bridging internal/ext2.Filesystem through internal/ext2fuse.
package main

import (
	"fmt"
	"os"

	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/spf13/cobra"

	"github.com/desmonHak/talus/internal/blockdev"
	"github.com/desmonHak/talus/internal/ext2"
	"github.com/desmonHak/talus/internal/ext2fuse"
	"github.com/desmonHak/talus/internal/kernerr"
	"github.com/desmonHak/talus/internal/kernlog"
)

var (
	readOnly   bool
	allowOther bool
	debug      bool
)

func main() {
	root := &cobra.Command{
		Use:   "talusfuse IMAGE MOUNTPOINT",
		Short: "Mount an ext2 image at a directory via FUSE",
		Args:  cobra.ExactArgs(2),
		RunE:  run,
	}
	root.Flags().BoolVar(&readOnly, "read-only", false, "reject writes at the FUSE layer")
	root.Flags().BoolVar(&allowOther, "allow-other", false, "allow other users to access the mount")
	root.Flags().BoolVar(&debug, "debug", false, "log every FUSE request")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "talusfuse:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	image, mountpoint := args[0], args[1]

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

	opts := &gofs.Options{}
	opts.AllowOther = allowOther
	opts.Debug = debug
	if readOnly {
		opts.Options = append(opts.Options, "ro")
	}

	server, err := ext2fuse.Mount(mountpoint, filesystem, opts)
	if err != nil {
		return fmt.Errorf("fuse mount: %w", err)
	}
	log.Infof("mounted %s at %s", image, mountpoint)
	server.Wait()
	return nil
}
