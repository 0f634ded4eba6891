package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/colorfulnotion/avm/program"
	"github.com/colorfulnotion/avm/vm"
	"github.com/nsf/jsondiff"
	"github.com/spf13/cobra"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

func newDiffCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "diff <stateA.json> <stateB.json>",
		Short: "Compare two machine states written by run --dump or debug dump",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			left, err := readStateView(args[0], raw)
			if err != nil {
				return err
			}
			right, err := readStateView(args[1], raw)
			if err != nil {
				return err
			}
			opts := jsondiff.DefaultConsoleOptions()
			diff, text := jsondiff.Compare(left, right, &opts)
			if diff == jsondiff.FullMatch {
				fmt.Fprintln(cmd.OutOrStdout(), "states are identical")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return fmt.Errorf("states differ (%s)", diff)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Compare the JSON files as written, image hex included")
	return cmd
}

// readStateView loads a State JSON file and re-renders it as a stateView so
// that image changes show up word by word.
func readStateView(path string, raw bool) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if raw {
		return data, nil
	}
	var s vm.State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	img, err := program.New(s.Image)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return json.Marshal(newStateView(&s, img))
}

// stateView is the diff-friendly rendering of a machine: registers plus the
// non-zero words keyed by "x y".
type stateView struct {
	PC          uint16            `json:"pc"`
	Accumulator uint32            `json:"accumulator"`
	Flags       string            `json:"flags"`
	Halted      bool              `json:"halted"`
	Steps       uint64            `json:"steps"`
	Words       map[string]uint32 `json:"words"`
}

func newStateView(s *vm.State, img *program.Image) *stateView {
	v := &stateView{
		PC:          s.PC,
		Accumulator: s.Accumulator,
		Flags:       vm.FlagString(s.Flags),
		Halted:      s.Halted,
		Steps:       s.Steps,
		Words:       make(map[string]uint32),
	}
	for off := 0; off < program.ImageSize; off += program.WordSize {
		if w := img.WordAt(off); w != 0 {
			x, y, _ := program.OperandsOf(off)
			v.Words[fmt.Sprintf("%d %d", x, y)] = w
		}
	}
	return v
}

// stepDelta renders what changed between two views as an ASCII delta, or
// "" when nothing did.
func stepDelta(before, after *stateView, color bool) (string, error) {
	left, err := json.Marshal(before)
	if err != nil {
		return "", err
	}
	right, err := json.Marshal(after)
	if err != nil {
		return "", err
	}
	delta, err := gojsondiff.New().Compare(left, right)
	if err != nil {
		return "", err
	}
	if !delta.Modified() {
		return "", nil
	}
	var leftObj interface{}
	_ = json.Unmarshal(left, &leftObj)
	f := formatter.NewAsciiFormatter(leftObj, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       color,
	})
	return f.Format(delta)
}
