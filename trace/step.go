package trace

import (
	"fmt"
	"sync"
)

// Step is the record emitted for every executed instruction.
type Step struct {
	Step        uint64 `json:"step"`
	PC          uint16 `json:"pc"`
	Raw         string `json:"raw"`
	Opcode      string `json:"opcode,omitempty"`
	Instruction string `json:"instruction,omitempty"`

	PostPC     uint16  `json:"postPc"`
	PostAcc    uint32  `json:"postAcc"`
	PostFlags  uint8   `json:"postFlags"`
	PostStatus string  `json:"postStatus"`
	Fault      *string `json:"fault,omitempty"`

	ChangedWordOffset *uint16 `json:"changedWordOffset,omitempty"`
	ChangedWordValue  *uint32 `json:"changedWordValue,omitempty"`
}

func NewStep(n uint64, pc uint16, raw [4]byte) *Step {
	return &Step{
		Step: n,
		PC:   pc,
		Raw:  fmt.Sprintf("%02x%02x%02x%02x", raw[0], raw[1], raw[2], raw[3]),
	}
}

func (s *Step) SetChangedWord(offset int, value uint32) {
	off := uint16(offset)
	s.ChangedWordOffset = &off
	s.ChangedWordValue = &value
}

func (s *Step) SetFault(name string) {
	s.Fault = &name
}

// Sink consumes step records.
type Sink interface {
	WriteStep(step *Step) error
}

type teeSink []Sink

// Tee fans each step out to every sink, stopping at the first error.
func Tee(sinks ...Sink) Sink {
	out := make(teeSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (t teeSink) WriteStep(step *Step) error {
	for _, s := range t {
		if err := s.WriteStep(step); err != nil {
			return err
		}
	}
	return nil
}

// Recorder keeps every step in memory.
type Recorder struct {
	mu    sync.Mutex
	steps []*Step
}

func (r *Recorder) WriteStep(step *Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
	return nil
}

// Steps returns the recorded steps in order.
func (r *Recorder) Steps() []*Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// Last returns the most recent step, or nil.
func (r *Recorder) Last() *Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.steps) == 0 {
		return nil
	}
	return r.steps[len(r.steps)-1]
}
