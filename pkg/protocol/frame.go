package protocol

import "fmt"

// Opcode identifies the type of frame. It is element 0 of every frame.
type Opcode int

const (
	// Client → authority
	OpDispatchComponentEvent Opcode = 0  // Element or document event
	OpExecuteJSResult        Opcode = 1  // Remote execution feedback
	OpNavigateTo             Opcode = 2  // Tree transition request

	// Authority → client
	OpApplyPatch       Opcode = 16 // Patch batch
	OpExecuteJS        Opcode = 17 // Remote execution request
	OpNavigationResult Opcode = 18 // Navigation patches / reload
	OpComponentUnknown Opcode = 19 // Authority lost the page
)

// String returns the string representation of the opcode.
func (op Opcode) String() string {
	switch op {
	case OpDispatchComponentEvent:
		return "DispatchComponentEvent"
	case OpExecuteJSResult:
		return "ExecuteJSResult"
	case OpNavigateTo:
		return "NavigateTo"
	case OpApplyPatch:
		return "ApplyPatch"
	case OpExecuteJS:
		return "ExecuteJS"
	case OpNavigationResult:
		return "NavigationResult"
	case OpComponentUnknown:
		return "ComponentUnknown"
	default:
		return fmt.Sprintf("Unknown(%d)", int(op))
	}
}

// Known reports whether op is part of this protocol version.
func (op Opcode) Known() bool {
	switch op {
	case OpDispatchComponentEvent, OpExecuteJSResult, OpNavigateTo,
		OpApplyPatch, OpExecuteJS, OpNavigationResult, OpComponentUnknown:
		return true
	}
	return false
}

// Frame is one decoded wire frame: the opcode plus its positional fields.
type Frame struct {
	Op     Opcode
	Fields []any
}

// NewFrame creates a frame with the given opcode and fields.
func NewFrame(op Opcode, fields ...any) Frame {
	return Frame{Op: op, Fields: fields}
}

// Field returns field i, or nil if the frame is shorter.
// Trailing optional fields may be omitted by older peers.
func (f Frame) Field(i int) any {
	if i < 0 || i >= len(f.Fields) {
		return nil
	}
	return f.Fields[i]
}

// require returns an error if the frame carries fewer than n fields.
func (f Frame) require(n int) error {
	if len(f.Fields) < n {
		return decodeError(f.Op, fmt.Errorf("want %d fields, got %d", n, len(f.Fields)))
	}
	return nil
}

// value returns the positional array sent on the wire.
func (f Frame) value() []any {
	out := make([]any, 0, len(f.Fields)+1)
	out = append(out, int64(f.Op))
	return append(out, f.Fields...)
}
