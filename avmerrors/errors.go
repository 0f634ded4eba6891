package avmerrors

import (
	"errors"
	"strings"
)

// Virtual machine (V) Errors
var (
	ErrMalformedProgramImage    = errors.New("V1|MalformedProgramImage: Program image must be exactly 1024 bytes.")
	ErrUnrecognizedInstruction  = errors.New("V2|UnrecognizedInstruction: Fetched bytes match no known mnemonic.")
	ErrUnimplementedInstruction = errors.New("V3|UnimplementedInstruction: Instruction is declared but not supported by this instruction set.")
	ErrProgramCounterOverflow   = errors.New("V4|ProgramCounterOverflow: Program counter is past the code region.")
	ErrAddressOutOfRange        = errors.New("V5|AddressOutOfRange: Operand does not address a word of the program image.")
)

// Assembler (A) Errors
var (
	ErrASyntax         = errors.New("A1|Syntax: Malformed assembly line.")
	ErrAUnknownLabel   = errors.New("A2|UnknownLabel: Reference to an undefined label.")
	ErrADuplicateLabel = errors.New("A3|DuplicateLabel: Label defined more than once.")
	ErrACodeOverflow   = errors.New("A4|CodeOverflow: Instructions do not fit in the code region.")
)

// Storage (S) Errors
var (
	ErrSImageNotFound    = errors.New("S1|ImageNotFound: No program image stored under that name or hash.")
	ErrSSnapshotNotFound = errors.New("S2|SnapshotNotFound: No machine snapshot stored under that name.")
)

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	if len(parts) < 2 {
		return errStr
	}
	nameDesc := parts[1]
	// Split on ':' to separate the error name from its description.
	nameParts := strings.SplitN(nameDesc, ":", 2)
	return strings.TrimSpace(nameParts[0])
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}

// GetErrorDesc extracts the error description from the error message.
func GetErrorDesc(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	parts := strings.SplitN(errStr, ":", 2)
	if len(parts) < 2 {
		return "DESC NOT SET"
	}
	return strings.TrimSpace(parts[1])
}

// Sentinel returns the first avmerrors sentinel found in err's chain, or nil.
func Sentinel(err error) error {
	for _, s := range all {
		if errors.Is(err, s) {
			return s
		}
	}
	return nil
}

var all = []error{
	ErrMalformedProgramImage,
	ErrUnrecognizedInstruction,
	ErrUnimplementedInstruction,
	ErrProgramCounterOverflow,
	ErrAddressOutOfRange,
	ErrASyntax,
	ErrAUnknownLabel,
	ErrADuplicateLabel,
	ErrACodeOverflow,
	ErrSImageNotFound,
	ErrSSnapshotNotFound,
}
