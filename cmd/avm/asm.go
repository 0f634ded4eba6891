package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/colorfulnotion/avm/log"
	"github.com/colorfulnotion/avm/program"
	"github.com/spf13/cobra"
)

func newAsmCmd(a *app) *cobra.Command {
	var output, name string
	cmd := &cobra.Command{
		Use:   "asm <source.asm>",
		Short: "Assemble source into a 1024-byte image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			asm, err := program.Assemble(string(src))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if output == "" && name == "" {
				output = strings.TrimSuffix(args[0], ".asm") + ".bin"
			}
			if output != "" {
				if err := asm.Image.Save(output); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			}
			if name != "" {
				lib, err := a.openLibrary()
				if err != nil {
					return err
				}
				defer lib.Close()
				if _, err := lib.PutImage(name, asm.Image); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored as %s\n", name)
			}
			stats := program.Analyze(asm.Image)
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %d instructions, %d labels\n", asm.Image.Hash().Hex(), stats.InstructionCount, len(asm.Labels))
			log.Debug(log.AsmModule, "asm", "src", args[0], "out", output, "name", name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Image file to write (default <source>.bin)")
	cmd.Flags().StringVar(&name, "store", "", "Also store the image in the library under this name")
	return cmd
}

func newDisasmCmd(a *app) *cobra.Command {
	var tree, source, stats, fromStore bool
	cmd := &cobra.Command{
		Use:   "disasm <image|name>",
		Short: "Disassemble an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := a.loadImage(args[0], fromStore)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case tree:
				fmt.Fprint(out, program.Tree(img).String())
			case source:
				fmt.Fprint(out, program.Source(img))
			default:
				for _, l := range program.Disassemble(img) {
					if l.Raw == [program.InstructionSize]byte{} {
						continue
					}
					fmt.Fprintf(out, "%04d  %x  %s\n", l.Slot, l.Raw, l)
				}
			}
			if stats {
				printStats(out, program.Analyze(img))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&tree, "tree", false, "Print the image as a region tree")
	cmd.Flags().BoolVar(&source, "source", false, "Print reassemblable source")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print static analysis")
	cmd.Flags().BoolVar(&fromStore, "store", false, "Resolve the argument in the program library only")
	return cmd
}

func printStats(out io.Writer, s *program.ProgramStats) {
	fmt.Fprintf(out, "instructions: %d (invalid %d)\n", s.InstructionCount, s.InvalidCount)
	for _, m := range s.Mnemonics() {
		fmt.Fprintf(out, "  %-4s %-15s %d\n", m, program.GetCategoryName(program.GetInstructionCategory(m)), s.OpcodeDistribution[m])
	}
	if len(s.JumpTableWords) > 0 {
		fmt.Fprintf(out, "jump table words: %v\n", s.JumpTableWords)
	}
	if s.SelfModifying() {
		fmt.Fprintf(out, "self-modifying stores at slots %v\n", s.CodeStores)
	}
	fmt.Fprintf(out, "halts at slots %v\n", s.HaltSlots)
}
