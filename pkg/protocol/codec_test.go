package protocol

import (
	stderrors "errors"
	"reflect"
	"testing"
	"time"
)

func roundTrip(t *testing.T, f Frame) Frame {
	t.Helper()
	c := NewCodec()
	data, err := c.Encode(f)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return got
}

func TestCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		frame  Frame
		fields int
	}{
		{"component_unknown", NewFrame(OpComponentUnknown, true), 1},
		{"empty", NewFrame(OpApplyPatch), 0},
		{"mixed", NewFrame(OpExecuteJSResult, int64(42), nil, "c1"), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, tt.frame)
			if got.Op != tt.frame.Op {
				t.Errorf("Op = %v, want %v", got.Op, tt.frame.Op)
			}
			if len(got.Fields) != tt.fields {
				t.Errorf("len(Fields) = %d, want %d", len(got.Fields), tt.fields)
			}
		})
	}
}

func TestCodecDecodeErrors(t *testing.T) {
	c := NewCodec()
	notArray, _ := c.EncodeValue(map[string]any{"a": int64(1)})
	emptyArray, _ := c.EncodeValue([]any{})
	badOpcode, _ := c.EncodeValue([]any{"x", int64(1)})

	tests := []struct {
		name string
		data []byte
	}{
		{"nil", nil},
		{"truncated", []byte{0x93, 0x01}},
		{"not_array", notArray},
		{"empty_array", emptyArray},
		{"string_opcode", badOpcode},
		{"garbage", []byte{0xc1, 0xc1, 0xc1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.data)
			if err == nil {
				t.Fatal("Decode() should fail")
			}
			if !stderrors.Is(err, ErrDecode) {
				t.Errorf("error %v should match ErrDecode", err)
			}
		})
	}
}

func TestCodecDecodeTooLarge(t *testing.T) {
	c := NewCodec()
	_, err := c.Decode(make([]byte, MaxFrameSize+1))
	if !stderrors.Is(err, ErrFrameTooLarge) {
		t.Errorf("Decode() error = %v, want ErrFrameTooLarge", err)
	}
}

func TestCodecUnknownOpcodeDecodes(t *testing.T) {
	got := roundTrip(t, NewFrame(Opcode(99), "x"))
	if got.Op.Known() {
		t.Error("opcode 99 should not be known")
	}
	if got.Op.String() != "Unknown(99)" {
		t.Errorf("String() = %q", got.Op.String())
	}
}

func TestFrameField(t *testing.T) {
	f := NewFrame(OpApplyPatch, "a")
	if f.Field(0) != "a" {
		t.Errorf("Field(0) = %v", f.Field(0))
	}
	if f.Field(1) != nil || f.Field(-1) != nil {
		t.Error("out of range fields should be nil")
	}
}

func TestComponentEventRoundTrip(t *testing.T) {
	in := &ComponentEvent{
		PageUID:   "page-1",
		TargetUID: "btn-1",
		Name:      "click",
		Value:     map[string]any{"count": int64(2), "tags": []any{"a", "b"}},
	}
	got, err := DecodeComponentEvent(roundTrip(t, in.Frame()))
	if err != nil {
		t.Fatalf("DecodeComponentEvent() error = %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("got %+v, want %+v", got, in)
	}
}

func TestComponentEventDocumentScoped(t *testing.T) {
	in := &ComponentEvent{PageUID: "p", TargetUID: "p", Name: "keydown", Value: "Enter", DocumentScoped: true}
	got, err := DecodeComponentEvent(roundTrip(t, in.Frame()))
	if err != nil {
		t.Fatalf("DecodeComponentEvent() error = %v", err)
	}
	if !got.DocumentScoped {
		t.Error("DocumentScoped should survive the round trip")
	}
}

func TestExecResultRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   *ExecResult
	}{
		{"result", &ExecResult{Result: "2", CorrelationUID: "c1"}},
		{"error", &ExecResult{Err: "ReferenceError: x is not defined", CorrelationUID: "c2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := roundTrip(t, tt.in.Frame())
			if tt.in.Err == "" && f.Field(1) != nil {
				t.Errorf("empty error should encode as nil, got %v", f.Field(1))
			}
			got, err := DecodeExecResult(f)
			if err != nil {
				t.Fatalf("DecodeExecResult() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.in) {
				t.Errorf("got %+v, want %+v", got, tt.in)
			}
		})
	}
}

func TestNavigateToRoundTrip(t *testing.T) {
	in := &NavigateTo{
		CurrentPageUID: "page-1",
		Path:           "/users/2",
		Headers:        map[string]string{"Referer": "http://localhost/users/1", "Host": "localhost"},
	}
	f := roundTrip(t, in.Frame())
	if f.Field(1) != nil {
		t.Errorf("unknown next uid should encode as nil, got %v", f.Field(1))
	}
	got, err := DecodeNavigateTo(f)
	if err != nil {
		t.Fatalf("DecodeNavigateTo() error = %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("got %+v, want %+v", got, in)
	}
}

func TestExecuteJSRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   *ExecuteJS
	}{
		{"full", &ExecuteJS{Code: "x = 1", ResultExpr: "x + 1", Timeout: 250 * time.Millisecond, NeedsFeedback: true, CorrelationUID: "c1"}},
		{"fire_and_forget", &ExecuteJS{Code: "x = 1", CorrelationUID: "c2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeExecuteJS(roundTrip(t, tt.in.Frame()))
			if err != nil {
				t.Fatalf("DecodeExecuteJS() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.in) {
				t.Errorf("got %+v, want %+v", got, tt.in)
			}
		})
	}
}

func TestExecuteJSNegativeTimeout(t *testing.T) {
	f := NewFrame(OpExecuteJS, "x", nil, int64(-1), false, "c1")
	if _, err := DecodeExecuteJS(f); !stderrors.Is(err, ErrDecode) {
		t.Errorf("DecodeExecuteJS() error = %v, want ErrDecode", err)
	}
}

func TestNavigationResultRoundTrip(t *testing.T) {
	in := &NavigationResult{
		Path:        "/next",
		NextPageUID: "page-2",
		Patches: []Patch{
			NewReplaceNodePatch("page-1", NewElementWire("main", "page-2", nil, NewTextWire("hi"))),
		},
		Final: true,
	}
	got, err := DecodeNavigationResult(roundTrip(t, in.Frame()))
	if err != nil {
		t.Fatalf("DecodeNavigationResult() error = %v", err)
	}
	if got.Path != in.Path || got.NextPageUID != in.NextPageUID || !got.Final || got.FullReload {
		t.Errorf("got %+v", got)
	}
	if len(got.Patches) != 1 || got.Patches[0].Node.UID != "page-2" {
		t.Errorf("Patches = %+v", got.Patches)
	}
}

func TestComponentUnknownRoundTrip(t *testing.T) {
	for _, must := range []bool{true, false} {
		got, err := DecodeComponentUnknown(roundTrip(t, (&ComponentUnknown{MustReload: must}).Frame()))
		if err != nil {
			t.Fatalf("DecodeComponentUnknown() error = %v", err)
		}
		if got.MustReload != must {
			t.Errorf("MustReload = %v, want %v", got.MustReload, must)
		}
	}
}

func TestMessageDecodeShortFrame(t *testing.T) {
	tests := []struct {
		name   string
		decode func(Frame) error
	}{
		{"component_event", func(f Frame) error { _, err := DecodeComponentEvent(f); return err }},
		{"exec_result", func(f Frame) error { _, err := DecodeExecResult(f); return err }},
		{"navigate_to", func(f Frame) error { _, err := DecodeNavigateTo(f); return err }},
		{"apply_patch", func(f Frame) error { _, err := DecodeApplyPatch(f); return err }},
		{"execute_js", func(f Frame) error { _, err := DecodeExecuteJS(f); return err }},
		{"navigation_result", func(f Frame) error { _, err := DecodeNavigationResult(f); return err }},
		{"component_unknown", func(f Frame) error { _, err := DecodeComponentUnknown(f); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode(Frame{})
			if !stderrors.Is(err, ErrDecode) {
				t.Errorf("decode(empty) error = %v, want ErrDecode", err)
			}
		})
	}
}
