package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/slices"
)

const (
	VMModule      = "avm"     // fetch/decode/execute engine
	AsmModule     = "asm"     // assembler and disassembler
	StoreModule   = "store"   // program library
	TraceModule   = "trace"   // trace writers and live stream
	CLIModule     = "cli"     // command line front end
	DebugModule   = "debug"   // interactive debugger
	ProfileModule = "profile" // execution profiles
)

// KnownModules lists the modules whose Trace/Debug output can be enabled.
var KnownModules = []string{VMModule, AsmModule, StoreModule, TraceModule, CLIModule, DebugModule, ProfileModule}

var root atomic.Value

func init() {
	root.Store(NewLogger(DiscardHandler()))
}

var levelAliases = map[string]slog.Level{
	"max":          levelMaxVerbosity,
	"maxverbosity": levelMaxVerbosity,
	"warning":      LevelWarn,
	"critical":     LevelCrit,
}

func ParseLevel(lvl string) (slog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(lvl))
	if l, ok := levelAliases[name]; ok {
		return l, nil
	}
	for l, n := range levelNames {
		if n == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("invalid level: %s", lvl)
}

// InitLogger installs a root logger writing to w at the named level,
// as JSON records when asJSON is set.
func InitLogger(w io.Writer, level string, asJSON bool) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if w == nil {
		w = os.Stderr
	}
	if asJSON {
		SetDefault(NewLogger(NewJSONHandlerWithLevel(w, lvl)))
	} else {
		SetDefault(NewLogger(NewTerminalHandlerWithLevel(w, lvl, true)))
	}
	return nil
}

func SetDefault(l Logger) {
	root.Store(l)
	if lg, ok := l.(*logger); ok {
		slog.SetDefault(lg.inner)
	}
}

func Root() Logger {
	return root.Load().(Logger)
}

// Trace and Debug output is opt-in per module; higher levels always pass.
type moduleSet struct {
	mu      sync.RWMutex
	enabled map[string]bool
}

func (s *moduleSet) set(module string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.enabled[module] = true
	} else {
		delete(s.enabled, module)
	}
}

func (s *moduleSet) has(module string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled[module]
}

func (s *moduleSet) list() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.enabled))
	for m := range s.enabled {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

var modules = &moduleSet{enabled: map[string]bool{}}

func EnableModule(module string)  { modules.set(module, true) }
func DisableModule(module string) { modules.set(module, false) }

// EnableModules enables a comma separated list; "all" enables KnownModules.
func EnableModules(list string) {
	for _, m := range strings.Split(list, ",") {
		switch m = strings.TrimSpace(m); m {
		case "":
		case "all":
			for _, k := range KnownModules {
				EnableModule(k)
			}
		default:
			EnableModule(m)
		}
	}
}

func IsModuleEnabled(module string) bool { return modules.has(module) }

// EnabledModules returns the enabled modules in sorted order.
func EnabledModules() []string { return modules.list() }

func Trace(module string, msg string, ctx ...any) {
	if IsModuleEnabled(module) {
		Root().Write(LevelTrace, module, msg, ctx...)
	}
}

func Debug(module string, msg string, ctx ...any) {
	if IsModuleEnabled(module) {
		Root().Write(LevelDebug, module, msg, ctx...)
	}
}

func Info(module string, msg string, ctx ...any) {
	Root().Write(LevelInfo, module, msg, ctx...)
}

func Warn(module string, msg string, ctx ...any) {
	Root().Write(LevelWarn, module, msg, ctx...)
}

func Error(module string, msg string, ctx ...any) {
	Root().Write(LevelError, module, msg, ctx...)
}

func Crit(module string, msg string, ctx ...any) {
	Root().Write(LevelCrit, module, msg, ctx...)
	os.Exit(1)
}

func New(ctx ...any) Logger {
	return Root().With(ctx...)
}
