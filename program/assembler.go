package program

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/colorfulnotion/avm/avmerrors"
	"github.com/colorfulnotion/avm/log"
)

// Assembly is the result of assembling a source file.
type Assembly struct {
	Image  *Image
	Labels map[string]int // label -> code slot
}

// AsmError locates an assembler failure in the source.
type AsmError struct {
	Line int
	Text string
	Err  error
}

func (e *AsmError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *AsmError) Unwrap() error {
	return e.Err
}

type pendingWord struct {
	line  int
	text  string
	x, y  byte
	value string
}

// Assemble translates assembly source into a program image.
//
// Source is line based. `;` starts a comment and `name:` defines a label at
// the current code slot. Instructions (`LR 0 3`, `HALT`) fill consecutive
// code slots starting at 0. Directives:
//
//	.org SLOT          move the slot cursor
//	.word X Y VALUE    set the word at (X, Y); VALUE may be @label
//	.raw B0 B1 B2 B3   place four literal bytes in the current slot
func Assemble(src string) (*Assembly, error) {
	asm := &Assembly{Image: Empty(), Labels: make(map[string]int)}
	var words []pendingWord
	slot := 0

	for i, raw := range strings.Split(src, "\n") {
		lineNo := i + 1
		line := raw
		if idx := strings.IndexByte(line, ';'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		fail := func(err error, format string, args ...any) error {
			return &AsmError{Line: lineNo, Text: strings.TrimSpace(raw), Err: fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)}
		}

		for {
			idx := strings.IndexByte(line, ':')
			if idx < 0 {
				break
			}
			label := strings.TrimSpace(line[:idx])
			if !validLabel(label) {
				return nil, fail(avmerrors.ErrASyntax, "bad label %q", label)
			}
			if _, dup := asm.Labels[label]; dup {
				return nil, fail(avmerrors.ErrADuplicateLabel, "label %q", label)
			}
			asm.Labels[label] = slot
			line = strings.TrimSpace(line[idx+1:])
		}
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		head := strings.ToUpper(fields[0])
		args := fields[1:]
		switch head {
		case ".ORG":
			if len(args) != 1 {
				return nil, fail(avmerrors.ErrASyntax, ".org takes one argument")
			}
			n, err := strconv.ParseUint(args[0], 0, 16)
			if err != nil || n > CodeSlots {
				return nil, fail(avmerrors.ErrASyntax, "bad slot %q", args[0])
			}
			slot = int(n)
		case ".WORD":
			if len(args) != 3 {
				return nil, fail(avmerrors.ErrASyntax, ".word takes x, y and a value")
			}
			x, y, err := parseOperands(args[0], args[1])
			if err != nil {
				return nil, fail(avmerrors.ErrASyntax, "%v", err)
			}
			words = append(words, pendingWord{line: lineNo, text: strings.TrimSpace(raw), x: x, y: y, value: args[2]})
		case ".RAW":
			if len(args) != InstructionSize {
				return nil, fail(avmerrors.ErrASyntax, ".raw takes %d bytes", InstructionSize)
			}
			if slot >= CodeSlots {
				return nil, fail(avmerrors.ErrACodeOverflow, "slot %d", slot)
			}
			var b [InstructionSize]byte
			for j, a := range args {
				v, err := strconv.ParseUint(a, 0, 8)
				if err != nil {
					return nil, fail(avmerrors.ErrASyntax, "bad byte %q", a)
				}
				b[j] = byte(v)
			}
			asm.Image.WriteBytes(SlotOffset(slot), b[:])
			slot++
		default:
			ins, err := parseInstruction(head, args)
			if err != nil {
				return nil, fail(avmerrors.ErrASyntax, "%v", err)
			}
			if slot >= CodeSlots {
				return nil, fail(avmerrors.ErrACodeOverflow, "slot %d", slot)
			}
			_ = asm.Image.SetSlot(slot, ins)
			slot++
		}
	}

	for _, w := range words {
		v, err := asm.resolve(w.value)
		if err != nil {
			return nil, &AsmError{Line: w.line, Text: w.text, Err: err}
		}
		_ = asm.Image.SetWord(w.x, w.y, v)
	}
	log.Debug(log.AsmModule, "assembled", "slots", slot, "labels", len(asm.Labels), "words", len(words), "hash", asm.Image.Hash().Short())
	return asm, nil
}

func (asm *Assembly) resolve(value string) (uint32, error) {
	if strings.HasPrefix(value, "@") {
		slot, ok := asm.Labels[value[1:]]
		if !ok {
			return 0, fmt.Errorf("label %q: %w", value[1:], avmerrors.ErrAUnknownLabel)
		}
		return uint32(slot), nil
	}
	v, err := strconv.ParseUint(value, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad value %q: %w", value, avmerrors.ErrASyntax)
	}
	return uint32(v), nil
}

func parseInstruction(head string, args []string) (Instruction, error) {
	op := Mnemonic(head)
	if _, ok := OpcodeNames[op]; !ok {
		return Instruction{}, fmt.Errorf("unknown mnemonic %q", head)
	}
	if !op.HasOperands() {
		if len(args) != 0 {
			return Instruction{}, fmt.Errorf("%s takes no operands", op)
		}
		return Instruction{Op: op}, nil
	}
	if len(args) != 2 {
		return Instruction{}, fmt.Errorf("%s takes two operands", op)
	}
	x, y, err := parseOperands(args[0], args[1])
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: op, X: x, Y: y}, nil
}

func parseOperands(xs, ys string) (byte, byte, error) {
	x, err := strconv.ParseUint(xs, 0, 8)
	if err != nil || x > MaxOperand {
		return 0, 0, fmt.Errorf("block index %q not in [0, %d]", xs, MaxOperand)
	}
	y, err := strconv.ParseUint(ys, 0, 8)
	if err != nil || y > MaxOperand {
		return 0, 0, fmt.Errorf("word index %q not in [0, %d]", ys, MaxOperand)
	}
	return byte(x), byte(y), nil
}

func validLabel(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
