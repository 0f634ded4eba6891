// Package profile aggregates execution traces into per-instruction and
// per-slot histograms and renders them as an HTML page.
package profile

import (
	"fmt"
	"io"
	"sync"

	"github.com/colorfulnotion/avm/log"
	"github.com/colorfulnotion/avm/program"
	"github.com/colorfulnotion/avm/trace"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"golang.org/x/exp/slices"
)

type edge struct{ from, to uint16 }

// SlotCount is how often a code slot executed.
type SlotCount struct {
	Slot  uint16
	Count uint64
}

// Profile is a trace.Sink. It is safe for concurrent use.
type Profile struct {
	mu         sync.Mutex
	steps      uint64
	faults     uint64
	byMnemonic map[string]uint64
	bySlot     [program.CodeSlots]uint64
	edges      map[edge]uint64
	stores     map[uint16]uint64 // byte offset -> writes
}

func New() *Profile {
	return &Profile{
		byMnemonic: make(map[string]uint64),
		edges:      make(map[edge]uint64),
		stores:     make(map[uint16]uint64),
	}
}

// FromSteps builds a profile from a recorded trace.
func FromSteps(steps []*trace.Step) *Profile {
	p := New()
	for _, s := range steps {
		_ = p.WriteStep(s)
	}
	return p
}

func (p *Profile) WriteStep(s *trace.Step) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Fault != nil {
		p.faults++
		return nil
	}
	p.steps++
	p.byMnemonic[s.Opcode]++
	if int(s.PC) < program.CodeSlots {
		p.bySlot[s.PC]++
	}
	if s.PostPC != s.PC+1 && s.PostStatus == "continued" {
		p.edges[edge{s.PC, s.PostPC}]++
	}
	if s.ChangedWordOffset != nil {
		p.stores[*s.ChangedWordOffset]++
	}
	return nil
}

func (p *Profile) Steps() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.steps
}

func (p *Profile) Faults() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.faults
}

// Count returns how many times mnemonic m executed.
func (p *Profile) Count(m program.Mnemonic) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byMnemonic[string(m)]
}

// Jumps returns how often control went from slot `from` to slot `to`
// other than by falling through.
func (p *Profile) Jumps(from, to uint16) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.edges[edge{from, to}]
}

// Hot returns the n most executed slots, most executed first. Ties keep slot order.
func (p *Profile) Hot(n int) []SlotCount {
	p.mu.Lock()
	var out []SlotCount
	for slot, c := range p.bySlot {
		if c > 0 {
			out = append(out, SlotCount{Slot: uint16(slot), Count: c})
		}
	}
	p.mu.Unlock()

	slices.SortStableFunc(out, func(a, b SlotCount) int {
		switch {
		case a.Count > b.Count:
			return -1
		case a.Count < b.Count:
			return 1
		}
		return 0
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (p *Profile) mnemonicChart() *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Instructions", Subtitle: fmt.Sprintf("%d steps, %d faults", p.steps, p.faults)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	names := make([]string, 0, len(program.Mnemonics))
	data := make([]opts.BarData, 0, len(program.Mnemonics))
	for _, m := range program.Mnemonics {
		names = append(names, string(m))
		data = append(data, opts.BarData{Value: p.byMnemonic[string(m)]})
	}
	bar.SetXAxis(names).AddSeries("executions", data)
	return bar
}

func (p *Profile) slotChart() *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Code slots"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	last := 0
	for slot, c := range p.bySlot {
		if c > 0 {
			last = slot
		}
	}
	slots := make([]string, 0, last+1)
	data := make([]opts.BarData, 0, last+1)
	for slot := 0; slot <= last; slot++ {
		slots = append(slots, fmt.Sprintf("%d", slot))
		data = append(data, opts.BarData{Value: p.bySlot[slot]})
	}
	bar.SetXAxis(slots).AddSeries("executions", data)
	return bar
}

func (p *Profile) flowGraph() *charts.Graph {
	graph := charts.NewGraph()
	graph.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Control flow", Subtitle: "taken jumps between slots"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	seen := make(map[uint16]bool)
	var nodes []opts.GraphNode
	var links []opts.GraphLink
	node := func(slot uint16) {
		if seen[slot] {
			return
		}
		seen[slot] = true
		nodes = append(nodes, opts.GraphNode{Name: fmt.Sprintf("%d", slot), Value: float32(p.bySlot[slot])})
	}
	for slot, c := range p.bySlot {
		if c > 0 {
			node(uint16(slot))
		}
	}
	for e, c := range p.edges {
		node(e.from)
		if int(e.to) < program.CodeSlots {
			node(e.to)
		}
		links = append(links, opts.GraphLink{Source: fmt.Sprintf("%d", e.from), Target: fmt.Sprintf("%d", e.to), Value: float32(c)})
	}
	graph.AddSeries("flow", nodes, links).SetSeriesOptions(
		charts.WithGraphChartOpts(opts.GraphChart{
			Force:  &opts.GraphForce{Repulsion: 400},
			Layout: "force",
			Roam:   opts.Bool(true),
		}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "right", Formatter: "{b}"}),
	)
	return graph
}

// Render writes the profile as a self-contained echarts page.
func (p *Profile) Render(w io.Writer) error {
	p.mu.Lock()
	page := components.NewPage()
	page.PageTitle = "avm profile"
	page.AddCharts(p.mnemonicChart(), p.slotChart(), p.flowGraph())
	log.Debug(log.ProfileModule, "rendering profile", "steps", p.steps, "edges", len(p.edges))
	p.mu.Unlock()

	return page.Render(w)
}
