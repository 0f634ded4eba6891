package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/colorfulnotion/avm/common"
	log "github.com/colorfulnotion/avm/log"
	"github.com/colorfulnotion/avm/program"
	"github.com/colorfulnotion/avm/storage"
	"github.com/colorfulnotion/avm/trace"
	"github.com/colorfulnotion/avm/vm"
	"github.com/dop251/goja"
	"github.com/spf13/cobra"
)

func newDebugCmd(a *app) *cobra.Command {
	var fromStore, legacy bool
	cmd := &cobra.Command{
		Use:   "debug <image|source.asm|name>",
		Short: "Step through an image interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := a.loadImage(args[0], fromStore)
			if err != nil {
				return err
			}
			var opts []vm.Option
			if legacy || a.cfg.Run.Legacy {
				opts = append(opts, vm.WithLegacyInstructionSet())
			}
			rl, err := readline.NewEx(&readline.Config{
				Prompt:      a.cfg.Debug.Prompt,
				HistoryFile: a.cfg.Debug.History,
			})
			if err != nil {
				return fmt.Errorf("failed to start readline: %w", err)
			}
			defer rl.Close()

			d := newDebugger(vm.New(img, opts...), rl.Stdout(), a.cfg.Run.MaxSteps, a.openLibrary)
			fmt.Fprintf(d.out, "image %s, type 'help' for commands\n", img.Hash().Short())
			d.where()
			for {
				line, err := rl.Readline()
				if err != nil { // io.EOF or interrupt
					return nil
				}
				quit, err := d.exec(line)
				if err != nil {
					fmt.Fprintf(d.out, "%serror%s %v\n", common.ColorRed, common.ColorReset, err)
				}
				if quit {
					return nil
				}
			}
		},
	}
	cmd.Flags().BoolVar(&fromStore, "store", false, "Resolve the argument in the program library only")
	cmd.Flags().BoolVar(&legacy, "legacy", false, "Treat CR, JB and HALT as unimplemented")
	return cmd
}

const debugHelp = `step [n]           execute n instructions (default 1)
run [max]           run until halt, fault or max steps
regs                show registers
word x y            show the word at (x, y)
set acc|pc v        set a register
set word x y v      set a word
dis [slot [n]]      disassemble n slots from slot (default: around pc)
diff                show what the last step changed
history [n]         list the last n executed steps (default 10)
js <expr>           evaluate JavaScript; step(n), acc(), pc(), flags(), word(x,y), setWord(x,y,v), print(...)
snap <name>         store the machine state in the library
load <name>         restore a stored machine state
dump <file>         write the machine state as JSON
reset               zero the registers, keep the image
quit                leave the debugger`

type debugger struct {
	m        *vm.VM
	out      io.Writer
	maxSteps uint64
	openLib  func() (*storage.Library, error)
	delta    string
	history  *trace.Recorder
	js       *goja.Runtime
}

func newDebugger(m *vm.VM, out io.Writer, maxSteps uint64, openLib func() (*storage.Library, error)) *debugger {
	d := &debugger{m: m, out: out, maxSteps: maxSteps, openLib: openLib, history: &trace.Recorder{}}
	m.SetTracer(trace.Tee(m.Tracer(), d.history))
	d.js = goja.New()
	d.js.Set("step", func(n int) string {
		if n <= 0 {
			n = 1
		}
		status, err := d.step(n)
		if err != nil {
			return err.Error()
		}
		return status.String()
	})
	d.js.Set("acc", func() uint32 { return d.m.Accumulator() })
	d.js.Set("pc", func() uint16 { return d.m.PC() })
	d.js.Set("flags", func() string { return vm.FlagString(d.m.Flags()) })
	d.js.Set("word", func(x, y int) (uint32, error) { return d.m.Word(byte(x), byte(y)) })
	d.js.Set("setWord", func(x, y int, v uint32) error { return d.m.SetWord(byte(x), byte(y), v) })
	d.js.Set("print", func(args ...goja.Value) {
		for _, arg := range args {
			fmt.Fprintln(d.out, arg.Export())
		}
	})
	return d
}

func (d *debugger) view() *stateView {
	s := d.m.Snapshot()
	img, _ := program.New(s.Image)
	return newStateView(s, img)
}

// step advances up to n instructions, stopping early on halt or fault, and
// records the delta across the whole batch.
func (d *debugger) step(n int) (vm.Status, error) {
	before := d.view()
	status := vm.Continued
	var err error
	for i := 0; i < n; i++ {
		if status, err = d.m.Advance(); err != nil || status == vm.Halted {
			break
		}
	}
	d.delta, _ = stepDelta(before, d.view(), false)
	return status, err
}

func (d *debugger) where() {
	printState(d.out, d.m)
	if l, err := program.DisassembleSlot(d.m.Image(), int(d.m.PC())); err == nil {
		fmt.Fprintf(d.out, "next %04d  %s\n", l.Slot, l)
	}
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return v, nil
}

func parsePair(xs, ys string) (byte, byte, error) {
	x, err := parseUint(xs, 8)
	if err != nil {
		return 0, 0, err
	}
	y, err := parseUint(ys, 8)
	if err != nil {
		return 0, 0, err
	}
	return byte(x), byte(y), nil
}

// exec runs one debugger command line.
func (d *debugger) exec(line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if strings.HasPrefix(line, "js ") {
		v, err := d.js.RunString(strings.TrimPrefix(line, "js "))
		if err != nil {
			return false, err
		}
		fmt.Fprintln(d.out, v)
		return false, nil
	}
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	log.Debug(log.DebugModule, "command", "cmd", cmd, "args", args)

	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "h", "?":
		fmt.Fprintln(d.out, debugHelp)
	case "step", "s":
		n := uint64(1)
		if len(args) > 0 {
			if n, err = parseUint(args[0], 32); err != nil {
				return false, err
			}
		}
		status, err := d.step(int(n))
		if status == vm.Halted {
			fmt.Fprintf(d.out, "%shalted%s\n", common.ColorGreen, common.ColorReset)
		}
		d.where()
		return false, err
	case "run", "r":
		limit := d.maxSteps
		if len(args) > 0 {
			if limit, err = parseUint(args[0], 64); err != nil {
				return false, err
			}
		}
		before := d.view()
		res, err := d.m.Run(context.Background(), limit)
		d.delta, _ = stepDelta(before, d.view(), false)
		fmt.Fprintf(d.out, "%s after %d steps\n", res.Status, res.Steps)
		d.where()
		return false, err
	case "regs":
		printState(d.out, d.m)
	case "word", "w":
		if len(args) != 2 {
			return false, errors.New("usage: word x y")
		}
		x, y, err := parsePair(args[0], args[1])
		if err != nil {
			return false, err
		}
		v, err := d.m.Word(x, y)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(d.out, "[%d %d] 0x%08x (%d) %s\n", x, y, v, v, program.FormatRaw([4]byte(common.Uint32ToBytes(v))))
	case "set":
		return false, d.set(args)
	case "dis", "d":
		return false, d.disassemble(args)
	case "diff":
		if d.delta == "" {
			fmt.Fprintln(d.out, "no changes")
		} else {
			fmt.Fprint(d.out, d.delta)
		}
	case "history":
		n := uint64(10)
		if len(args) > 0 {
			if n, err = parseUint(args[0], 32); err != nil {
				return false, err
			}
		}
		d.printHistory(int(n))
	case "snap":
		if len(args) != 1 {
			return false, errors.New("usage: snap name")
		}
		lib, err := d.openLib()
		if err != nil {
			return false, err
		}
		defer lib.Close()
		if err := lib.PutSnapshot(args[0], d.m.Snapshot()); err != nil {
			return false, err
		}
		fmt.Fprintf(d.out, "saved %s at step %d\n", args[0], d.m.Steps())
	case "load":
		if len(args) != 1 {
			return false, errors.New("usage: load name")
		}
		lib, err := d.openLib()
		if err != nil {
			return false, err
		}
		defer lib.Close()
		s, err := lib.GetSnapshot(args[0])
		if err != nil {
			return false, err
		}
		m, err := vm.Restore(s)
		if err != nil {
			return false, err
		}
		m.SetTracer(d.m.Tracer())
		d.m = m
		d.where()
	case "dump":
		if len(args) != 1 {
			return false, errors.New("usage: dump file")
		}
		data, err := json.MarshalIndent(d.m.Snapshot(), "", "  ")
		if err != nil {
			return false, err
		}
		return false, os.WriteFile(args[0], data, 0o644)
	case "reset":
		d.m.Reset()
		d.delta = ""
		d.where()
	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}
	return false, nil
}

func (d *debugger) printHistory(n int) {
	steps := d.history.Steps()
	if len(steps) > n {
		steps = steps[len(steps)-n:]
	}
	if len(steps) == 0 {
		fmt.Fprintln(d.out, "no steps executed")
	}
	for _, s := range steps {
		fmt.Fprintf(d.out, "%6d  %04d  %-10s acc=0x%08x flags=%s %s", s.Step, s.PC, s.Instruction, s.PostAcc, vm.FlagString(s.PostFlags), s.PostStatus)
		if s.Fault != nil {
			fmt.Fprintf(d.out, " %s", *s.Fault)
		}
		fmt.Fprintln(d.out)
	}
}

func (d *debugger) set(args []string) error {
	if len(args) == 4 && args[0] == "word" {
		x, y, err := parsePair(args[1], args[2])
		if err != nil {
			return err
		}
		v, err := parseUint(args[3], 32)
		if err != nil {
			return err
		}
		return d.m.SetWord(x, y, uint32(v))
	}
	if len(args) != 2 {
		return errors.New("usage: set acc|pc v, set word x y v")
	}
	switch args[0] {
	case "acc":
		v, err := parseUint(args[1], 32)
		if err != nil {
			return err
		}
		d.m.SetAccumulator(uint32(v))
	case "pc":
		v, err := parseUint(args[1], 16)
		if err != nil {
			return err
		}
		return d.m.SetPC(uint16(v))
	default:
		return fmt.Errorf("unknown register %q", args[0])
	}
	return nil
}

func (d *debugger) disassemble(args []string) error {
	from, n := int(d.m.PC())-2, 5
	if len(args) > 0 {
		v, err := parseUint(args[0], 8)
		if err != nil {
			return err
		}
		from = int(v)
	}
	if len(args) > 1 {
		v, err := parseUint(args[1], 8)
		if err != nil {
			return err
		}
		n = int(v)
	}
	if from < 0 {
		from = 0
	}
	img := d.m.Image()
	for slot := from; slot < from+n && slot < program.CodeSlots; slot++ {
		l, err := program.DisassembleSlot(img, slot)
		if err != nil {
			return err
		}
		marker := "  "
		if slot == int(d.m.PC()) {
			marker = "=>"
		}
		fmt.Fprintf(d.out, "%s %04d  %x  %s\n", marker, l.Slot, l.Raw, l)
	}
	return nil
}
