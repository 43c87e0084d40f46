package protocol

import (
	"fmt"
	"time"
)

// =============================================================================
// Client → Authority
// =============================================================================

// ComponentEvent is a DISPATCH_COMPONENT_EVENT frame.
type ComponentEvent struct {
	PageUID        string
	TargetUID      string
	Name           string
	Value          any
	DocumentScoped bool
}

// Frame encodes the event as a frame.
func (e *ComponentEvent) Frame() Frame {
	return NewFrame(OpDispatchComponentEvent, e.PageUID, e.TargetUID, e.Name, e.Value, e.DocumentScoped)
}

// DecodeComponentEvent decodes a DISPATCH_COMPONENT_EVENT frame.
func DecodeComponentEvent(f Frame) (*ComponentEvent, error) {
	if err := f.require(5); err != nil {
		return nil, err
	}
	e := &ComponentEvent{Value: f.Field(3)}
	var ok bool
	if e.PageUID, ok = asOptString(f.Field(0)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("page uid is %T", f.Field(0)))
	}
	if e.TargetUID, ok = asString(f.Field(1)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("target uid is %T", f.Field(1)))
	}
	if e.Name, ok = asString(f.Field(2)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("event name is %T", f.Field(2)))
	}
	if e.DocumentScoped, ok = asBool(f.Field(4)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("document flag is %T", f.Field(4)))
	}
	return e, nil
}

// ExecResult is an EXECUTE_JS result frame.
type ExecResult struct {
	Result         any
	Err            string // Empty means no error (sent as nil)
	CorrelationUID string
}

// Frame encodes the result as a frame.
func (r *ExecResult) Frame() Frame {
	return NewFrame(OpExecuteJSResult, r.Result, optString(r.Err), r.CorrelationUID)
}

// DecodeExecResult decodes an EXECUTE_JS result frame.
func DecodeExecResult(f Frame) (*ExecResult, error) {
	if err := f.require(3); err != nil {
		return nil, err
	}
	r := &ExecResult{Result: f.Field(0)}
	var ok bool
	if r.Err, ok = asOptString(f.Field(1)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("error is %T", f.Field(1)))
	}
	if r.CorrelationUID, ok = asString(f.Field(2)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("correlation uid is %T", f.Field(2)))
	}
	return r, nil
}

// NavigateTo is a NAVIGATE_TO frame.
type NavigateTo struct {
	CurrentPageUID string
	KnownNextUID   string // Empty means unknown (sent as nil)
	Path           string
	Headers        map[string]string
}

// Frame encodes the request as a frame.
func (n *NavigateTo) Frame() Frame {
	return NewFrame(OpNavigateTo, n.CurrentPageUID, optString(n.KnownNextUID), n.Path, stringMapValue(n.Headers))
}

// DecodeNavigateTo decodes a NAVIGATE_TO frame.
func DecodeNavigateTo(f Frame) (*NavigateTo, error) {
	if err := f.require(3); err != nil {
		return nil, err
	}
	n := &NavigateTo{}
	var ok bool
	if n.CurrentPageUID, ok = asString(f.Field(0)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("page uid is %T", f.Field(0)))
	}
	if n.KnownNextUID, ok = asOptString(f.Field(1)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("next uid is %T", f.Field(1)))
	}
	if n.Path, ok = asString(f.Field(2)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("path is %T", f.Field(2)))
	}
	headers, err := asStringMap(f.Field(3))
	if err != nil {
		return nil, decodeError(f.Op, fmt.Errorf("headers: %w", err))
	}
	n.Headers = headers
	return n, nil
}

// =============================================================================
// Authority → Client
// =============================================================================

// ApplyPatchFrame encodes a patch batch as an APPLY_PATCH frame.
func ApplyPatchFrame(patches []Patch) Frame {
	return NewFrame(OpApplyPatch, patchesValue(patches))
}

// DecodeApplyPatch decodes an APPLY_PATCH frame.
func DecodeApplyPatch(f Frame) ([]Patch, error) {
	if err := f.require(1); err != nil {
		return nil, err
	}
	patches, err := DecodePatches(f.Field(0))
	if err != nil {
		return nil, decodeError(f.Op, err)
	}
	return patches, nil
}

// ExecuteJS is an EXECUTE_JS request frame.
type ExecuteJS struct {
	Code           string
	ResultExpr     string        // Empty means no result expression
	Timeout        time.Duration // Zero means unbounded
	NeedsFeedback  bool
	CorrelationUID string
}

// Frame encodes the request as a frame.
func (x *ExecuteJS) Frame() Frame {
	var timeout any
	if x.Timeout > 0 {
		timeout = x.Timeout.Milliseconds()
	}
	return NewFrame(OpExecuteJS, x.Code, optString(x.ResultExpr), timeout, x.NeedsFeedback, x.CorrelationUID)
}

// DecodeExecuteJS decodes an EXECUTE_JS request frame.
func DecodeExecuteJS(f Frame) (*ExecuteJS, error) {
	if err := f.require(5); err != nil {
		return nil, err
	}
	x := &ExecuteJS{}
	var ok bool
	if x.Code, ok = asString(f.Field(0)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("code is %T", f.Field(0)))
	}
	if x.ResultExpr, ok = asOptString(f.Field(1)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("result expression is %T", f.Field(1)))
	}
	if raw := f.Field(2); raw != nil {
		ms, ok := asInt(raw)
		if !ok || ms < 0 {
			return nil, decodeError(f.Op, fmt.Errorf("timeout is %v", raw))
		}
		x.Timeout = time.Duration(ms) * time.Millisecond
	}
	if x.NeedsFeedback, ok = asBool(f.Field(3)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("feedback flag is %T", f.Field(3)))
	}
	if x.CorrelationUID, ok = asString(f.Field(4)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("correlation uid is %T", f.Field(4)))
	}
	return x, nil
}

// NavigationResult is a NAVIGATION_RESULT frame.
type NavigationResult struct {
	Path        string
	FullReload  bool
	NextPageUID string
	Patches     []Patch
	Final       bool
}

// Frame encodes the result as a frame.
func (r *NavigationResult) Frame() Frame {
	return NewFrame(OpNavigationResult, r.Path, r.FullReload, optString(r.NextPageUID), patchesValue(r.Patches), r.Final)
}

// DecodeNavigationResult decodes a NAVIGATION_RESULT frame.
func DecodeNavigationResult(f Frame) (*NavigationResult, error) {
	if err := f.require(5); err != nil {
		return nil, err
	}
	r := &NavigationResult{}
	var ok bool
	if r.Path, ok = asString(f.Field(0)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("path is %T", f.Field(0)))
	}
	if r.FullReload, ok = asBool(f.Field(1)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("reload flag is %T", f.Field(1)))
	}
	if r.NextPageUID, ok = asOptString(f.Field(2)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("next page uid is %T", f.Field(2)))
	}
	patches, err := DecodePatches(f.Field(3))
	if err != nil {
		return nil, decodeError(f.Op, err)
	}
	r.Patches = patches
	if r.Final, ok = asBool(f.Field(4)); !ok {
		return nil, decodeError(f.Op, fmt.Errorf("final flag is %T", f.Field(4)))
	}
	return r, nil
}

// ComponentUnknown is a COMPONENT_UNKNOWN frame.
type ComponentUnknown struct {
	MustReload bool
}

// Frame encodes the message as a frame.
func (c *ComponentUnknown) Frame() Frame {
	return NewFrame(OpComponentUnknown, c.MustReload)
}

// DecodeComponentUnknown decodes a COMPONENT_UNKNOWN frame.
func DecodeComponentUnknown(f Frame) (*ComponentUnknown, error) {
	if err := f.require(1); err != nil {
		return nil, err
	}
	must, ok := asBool(f.Field(0))
	if !ok {
		return nil, decodeError(f.Op, fmt.Errorf("reload flag is %T", f.Field(0)))
	}
	return &ComponentUnknown{MustReload: must}, nil
}

func patchesValue(patches []Patch) []any {
	out := make([]any, len(patches))
	for i := range patches {
		out[i] = patches[i].Value()
	}
	return out
}
