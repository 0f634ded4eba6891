package main

import (
	"fmt"
	"os"

	"github.com/colorfulnotion/avm/profile"
	"github.com/colorfulnotion/avm/program"
	"github.com/colorfulnotion/avm/trace"
	"github.com/colorfulnotion/avm/vm"
	"github.com/spf13/cobra"
)

func newProfileCmd(a *app) *cobra.Command {
	var output, fromTrace string
	var maxSteps uint64
	var top int
	cmd := &cobra.Command{
		Use:   "profile <image|source.asm|name>",
		Short: "Run an image and chart where execution time goes",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("max-steps") {
				maxSteps = a.cfg.Run.MaxSteps
			}
			var p *profile.Profile
			var img *program.Image
			switch {
			case fromTrace != "":
				steps, err := trace.ReadJSONLFile(fromTrace)
				if err != nil {
					return err
				}
				p = profile.FromSteps(steps)
			case len(args) == 1:
				var err error
				if img, err = a.loadImage(args[0], false); err != nil {
					return err
				}
				p = profile.New()
				m := vm.New(img, vm.WithTracer(p))
				res, err := m.Run(cmd.Context(), maxSteps)
				if err != nil && res.Fault == nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s after %d steps\n", res.Status, res.Steps)
			default:
				return fmt.Errorf("need an image or --from-trace")
			}

			out := cmd.OutOrStdout()
			for _, h := range p.Hot(top) {
				text := ""
				if img != nil {
					if l, err := program.DisassembleSlot(img, int(h.Slot)); err == nil {
						text = l.String()
					}
				}
				fmt.Fprintf(out, "%04d  %8d  %s\n", h.Slot, h.Count, text)
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := p.Render(f); err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "profile.html", "HTML file to write")
	cmd.Flags().StringVar(&fromTrace, "from-trace", "", "Build the profile from a JSONL trace instead of running")
	cmd.Flags().Uint64Var(&maxSteps, "max-steps", 0, "Step budget (default from config)")
	cmd.Flags().IntVar(&top, "top", 10, "Number of hot slots to list")
	return cmd
}
