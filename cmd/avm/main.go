// avm assembles, runs, inspects and debugs AVM program images
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/colorfulnotion/avm/avmerrors"
	"github.com/colorfulnotion/avm/common"
	"github.com/colorfulnotion/avm/config"
	log "github.com/colorfulnotion/avm/log"
	"github.com/colorfulnotion/avm/program"
	"github.com/colorfulnotion/avm/storage"
	"github.com/colorfulnotion/avm/vm"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// app carries the global flags and the loaded configuration.
type app struct {
	configPath string
	logLevel   string
	logModules string
	storePath  string

	cfg *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints err tagged with its "V4_ProgramCounterOverflow" style
// code when it carries an avmerrors sentinel.
func reportError(w io.Writer, err error) {
	sentinel := avmerrors.Sentinel(err)
	var f *vm.Fault
	if errors.As(err, &f) {
		fmt.Fprintf(w, "%sfault%s %s at pc %d, raw %s: %s\n", common.ColorRed, common.ColorReset,
			avmerrors.GetErrorCodeWithName(sentinel), f.PC, program.FormatRaw(f.Raw), avmerrors.GetErrorDesc(sentinel))
		if f.Detail != "" {
			fmt.Fprintf(w, "  %s\n", f.Detail)
		}
		return
	}
	if sentinel != nil {
		fmt.Fprintf(w, "%serror%s [%s] %v\n", common.ColorRed, common.ColorReset, avmerrors.GetErrorCodeWithName(sentinel), err)
		return
	}
	fmt.Fprintf(w, "%serror%s %v\n", common.ColorRed, common.ColorReset, err)
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var rootCmd = &cobra.Command{
		Use:   "avm",
		Short: "AVM byte-code virtual machine",
		Long: `avm runs 1024-byte AVM program images: four-byte mnemonic instructions
(LR SR AD SU CR JP JB HALT) over an accumulator and the image itself.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "Path to avm.toml")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); overrides config")
	rootCmd.PersistentFlags().StringVar(&a.logModules, "log-modules", "", "Comma separated modules with trace/debug output (avm,asm,store,trace,cli,debug,profile)")
	rootCmd.PersistentFlags().StringVar(&a.storePath, "db", "", "Program library path; overrides config")

	rootCmd.AddCommand(
		newRunCmd(a),
		newAsmCmd(a),
		newDisasmCmd(a),
		newDebugCmd(a),
		newStoreCmd(a),
		newDiffCmd(a),
		newProfileCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.storePath != "" {
		cfg.Store.Path = a.storePath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if err := log.InitLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.JSON); err != nil {
		return err
	}
	log.EnableModules(strings.Join(cfg.Log.Modules, ","))
	log.EnableModules(a.logModules)
	log.Debug(log.CLIModule, "starting", "cmd", cmd.CommandPath(), "config", cfg.Path, "store", cfg.Store.Path)
	return nil
}

func (a *app) openLibrary() (*storage.Library, error) {
	return storage.OpenLibrary(a.cfg.Store.Path)
}

// loadImage resolves ref to an image: assembly source (*.asm), a raw image
// file, or, with fromStore or when no such file exists, a library name or hash.
func (a *app) loadImage(ref string, fromStore bool) (*program.Image, error) {
	if !fromStore {
		if strings.HasSuffix(ref, ".asm") {
			src, err := os.ReadFile(ref)
			if err != nil {
				return nil, err
			}
			asm, err := program.Assemble(string(src))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", ref, err)
			}
			return asm.Image, nil
		}
		if _, err := os.Stat(ref); err == nil {
			return program.Load(ref)
		}
	}
	lib, err := a.openLibrary()
	if err != nil {
		return nil, err
	}
	defer lib.Close()
	return lib.GetImage(ref)
}

func printState(w io.Writer, m *vm.VM) {
	fmt.Fprintf(w, "pc=%d acc=0x%08x (%d) flags=%s sp=%d steps=%d halted=%v\n",
		m.PC(), m.Accumulator(), m.Accumulator(), vm.FlagString(m.Flags()), m.StackPointer(), m.Steps(), m.Halted())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "avm %s (commit %s, built %s)\n", Version, common.GetRevision(), BuildTime)
		},
	}
}
