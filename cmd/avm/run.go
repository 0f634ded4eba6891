package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/colorfulnotion/avm/common"
	log "github.com/colorfulnotion/avm/log"
	"github.com/colorfulnotion/avm/trace"
	"github.com/colorfulnotion/avm/vm"
	"github.com/spf13/cobra"
)

type runOptions struct {
	maxSteps  uint64
	tracePath string
	serve     string
	wait      bool
	legacy    bool
	fromStore bool
	resume    string
	snapshot  string
	dump      string
}

func newRunCmd(a *app) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <image|source.asm|name>",
		Short: "Execute a program image until it halts or faults",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("max-steps") {
				o.maxSteps = a.cfg.Run.MaxSteps
			}
			if !cmd.Flags().Changed("legacy") {
				o.legacy = a.cfg.Run.Legacy
			}
			if o.tracePath == "" {
				o.tracePath = a.cfg.Run.Trace
			}
			if o.serve == "" {
				o.serve = a.cfg.Run.Serve
			}
			if len(args) == 0 && o.resume == "" {
				return errors.New("need an image or --resume")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx, cmd, args, o)
		},
	}
	cmd.Flags().Uint64Var(&o.maxSteps, "max-steps", 0, "Step budget, 0 for no limit (default from config)")
	cmd.Flags().StringVar(&o.tracePath, "trace", "", "Write a JSONL step trace to this file ('-' for stdout)")
	cmd.Flags().StringVar(&o.serve, "serve", "", "Stream steps over websocket at this address, path /trace")
	cmd.Flags().BoolVar(&o.wait, "wait", false, "With --serve, wait for a client before executing")
	cmd.Flags().BoolVar(&o.legacy, "legacy", false, "Treat CR, JB and HALT as unimplemented")
	cmd.Flags().BoolVar(&o.fromStore, "store", false, "Resolve the argument in the program library only")
	cmd.Flags().StringVar(&o.resume, "resume", "", "Continue from a stored snapshot instead of a fresh image")
	cmd.Flags().StringVar(&o.snapshot, "snapshot", "", "Store the final machine state under this name")
	cmd.Flags().StringVar(&o.dump, "dump", "", "Write the final machine state as JSON to this file")
	return cmd
}

func (a *app) run(ctx context.Context, cmd *cobra.Command, args []string, o *runOptions) error {
	out := cmd.OutOrStdout()

	var sinks []trace.Sink
	var jsonl *trace.JSONLWriter
	if o.tracePath != "" {
		var w *trace.JSONLWriter
		if o.tracePath == "-" {
			// stdout carries only the trace; status goes to stderr
			w = trace.NewJSONLWriter(out)
			out = cmd.ErrOrStderr()
		} else {
			var err error
			if w, err = trace.NewJSONLWriterFile(o.tracePath); err != nil {
				return err
			}
		}
		defer w.Close()
		sinks = append(sinks, w)
		jsonl = w
	}
	if o.serve != "" {
		hub := NewServedHub(ctx, o.serve)
		defer hub.Shutdown()
		if o.wait {
			fmt.Fprintf(out, "waiting for a client on ws://%s/trace\n", o.serve)
			if err := hub.WaitForClient(ctx); err != nil {
				return err
			}
		}
		sinks = append(sinks, hub.Hub)
	}
	var opts []vm.Option
	if len(sinks) > 0 {
		opts = append(opts, vm.WithTracer(trace.Tee(sinks...)))
	}

	m, err := a.machine(args, o, opts)
	if err != nil {
		return err
	}

	res, runErr := m.Run(ctx, o.maxSteps)
	if jsonl != nil {
		if err := jsonl.Flush(); err != nil {
			return err
		}
	}
	switch {
	case res.Status == vm.Halted:
		fmt.Fprintf(out, "%shalted%s after %d steps in %v\n", common.ColorGreen, common.ColorReset, res.Steps, res.Elapsed)
	case res.Fault != nil:
		fmt.Fprintf(out, "%sfaulted%s after %d steps: %v\n", common.ColorRed, common.ColorReset, res.Steps, res.Fault)
	case runErr != nil:
		fmt.Fprintf(out, "stopped after %d steps: %v\n", res.Steps, runErr)
	default:
		fmt.Fprintf(out, "%sstep budget of %d exhausted%s\n", common.ColorYellow, o.maxSteps, common.ColorReset)
	}
	printState(out, m)

	if err := a.saveState(m, o); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if res.Exhausted() {
		return fmt.Errorf("no HALT within %d steps", o.maxSteps)
	}
	return nil
}

func (a *app) machine(args []string, o *runOptions, opts []vm.Option) (*vm.VM, error) {
	if o.legacy {
		opts = append(opts, vm.WithLegacyInstructionSet())
	}
	if o.resume != "" {
		lib, err := a.openLibrary()
		if err != nil {
			return nil, err
		}
		defer lib.Close()
		s, err := lib.GetSnapshot(o.resume)
		if err != nil {
			return nil, err
		}
		log.Info(log.CLIModule, "resuming", "snapshot", o.resume, "pc", s.PC, "steps", s.Steps)
		return vm.Restore(s, opts...)
	}
	img, err := a.loadImage(args[0], o.fromStore)
	if err != nil {
		return nil, err
	}
	log.Info(log.CLIModule, "loaded image", "ref", args[0], "hash", img.Hash().Short())
	return vm.New(img, opts...), nil
}

func (a *app) saveState(m *vm.VM, o *runOptions) error {
	if o.dump != "" {
		data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(o.dump, data, 0o644); err != nil {
			return err
		}
	}
	if o.snapshot != "" {
		lib, err := a.openLibrary()
		if err != nil {
			return err
		}
		defer lib.Close()
		if err := lib.PutSnapshot(o.snapshot, m.Snapshot()); err != nil {
			return err
		}
	}
	return nil
}

// ServedHub is a trace.Hub behind its own HTTP server.
type ServedHub struct {
	*trace.Hub
	srv    *http.Server
	cancel context.CancelFunc
}

func NewServedHub(ctx context.Context, addr string) *ServedHub {
	ctx, cancel := context.WithCancel(ctx)
	h := &ServedHub{Hub: trace.NewHub(), cancel: cancel}
	h.srv = &http.Server{Addr: addr, Handler: h.Hub.Handler()}
	go h.Hub.Run(ctx)
	go func() {
		if err := h.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(log.TraceModule, "trace server", "addr", addr, "err", err)
		}
	}()
	log.Info(log.TraceModule, "serving trace", "url", "ws://"+addr+"/trace")
	return h
}

func (h *ServedHub) WaitForClient(ctx context.Context) error {
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for h.Clients() == 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

// Shutdown gives queued steps a moment to drain, then stops the server.
func (h *ServedHub) Shutdown() {
	time.Sleep(100 * time.Millisecond)
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = h.srv.Shutdown(ctx)
}
