package main

import (
	"fmt"

	"github.com/colorfulnotion/avm/storage"
	"github.com/spf13/cobra"
)

func newStoreCmd(a *app) *cobra.Command {
	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the program library",
	}
	with := func(fn func(cmd *cobra.Command, lib *storage.Library, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			lib, err := a.openLibrary()
			if err != nil {
				return err
			}
			defer lib.Close()
			return fn(cmd, lib, args)
		}
	}

	storeCmd.AddCommand(
		&cobra.Command{
			Use:   "put <name> <image|source.asm>",
			Short: "Store an image under a name",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				img, err := a.loadImage(args[1], false)
				if err != nil {
					return err
				}
				return with(func(cmd *cobra.Command, lib *storage.Library, args []string) error {
					h, err := lib.PutImage(args[0], img)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", h.Hex(), args[0])
					return nil
				})(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "get <name|hash> <out.bin>",
			Short: "Write a stored image to a file",
			Args:  cobra.ExactArgs(2),
			RunE: with(func(cmd *cobra.Command, lib *storage.Library, args []string) error {
				img, err := lib.GetImage(args[0])
				if err != nil {
					return err
				}
				return img.Save(args[1])
			}),
		},
		&cobra.Command{
			Use:   "ls",
			Short: "List stored images and snapshots",
			Args:  cobra.NoArgs,
			RunE: with(func(cmd *cobra.Command, lib *storage.Library, args []string) error {
				entries, err := lib.List()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, e := range entries {
					fmt.Fprintf(out, "%s  %s\n", e.Hash.Hex(), e.Name)
				}
				snaps, err := lib.Snapshots()
				if err != nil {
					return err
				}
				for _, name := range snaps {
					fmt.Fprintf(out, "snapshot  %s\n", name)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "rm <name>",
			Short: "Remove a named image",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(cmd *cobra.Command, lib *storage.Library, args []string) error {
				return lib.DeleteImage(args[0])
			}),
		},
		&cobra.Command{
			Use:   "rmsnap <name>",
			Short: "Remove a snapshot",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(cmd *cobra.Command, lib *storage.Library, args []string) error {
				return lib.DeleteSnapshot(args[0])
			}),
		},
	)
	return storeCmd
}
