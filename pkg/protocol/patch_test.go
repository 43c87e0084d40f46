package protocol

import (
	"reflect"
	"testing"
)

func TestPatchEncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
	}{
		{
			name:  "remove_node",
			patch: NewRemoveNodePatch("n5"),
		},
		{
			name: "insert_node",
			patch: NewInsertNodePatch("n0", 2, &NodeWire{
				Tag:   "li",
				UID:   "n4",
				Props: map[string]string{"class": "new-item", "data-ls-events": "click"},
				Children: []*NodeWire{
					NewTextWire("New content"),
				},
			}),
		},
		{
			name: "replace_node",
			patch: NewReplaceNodePatch("n7", &NodeWire{
				Tag:   "span",
				UID:   "n7",
				Style: map[string]string{"color": "red"},
			}),
		},
		{
			name:  "alter_text",
			patch: NewAlterTextPatch("n1", "Hello, World!"),
		},
		{
			name:  "alter_markup",
			patch: NewAlterMarkupPatch("n1", "<b>bold</b> text"),
		},
		{
			name:  "replace_props",
			patch: NewReplacePropsPatch("n2", map[string]string{"class": "active", "title": "x"}),
		},
		{
			name:  "replace_props_empty",
			patch: NewReplacePropsPatch("n2", map[string]string{}),
		},
		{
			name:  "replace_style",
			patch: NewReplaceStylePatch("n3", map[string]string{"display": "none"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := roundTrip(t, ApplyPatchFrame([]Patch{tt.patch}))
			got, err := DecodeApplyPatch(f)
			if err != nil {
				t.Fatalf("DecodeApplyPatch() error = %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("len(patches) = %d, want 1", len(got))
			}
			if !reflect.DeepEqual(got[0], tt.patch) {
				t.Errorf("got %+v, want %+v", got[0], tt.patch)
			}
		})
	}
}

func TestPatchOrderPreserved(t *testing.T) {
	patches := []Patch{
		NewAlterTextPatch("a", "1"),
		NewRemoveNodePatch("b"),
		NewAlterTextPatch("c", "3"),
	}
	got, err := DecodeApplyPatch(roundTrip(t, ApplyPatchFrame(patches)))
	if err != nil {
		t.Fatalf("DecodeApplyPatch() error = %v", err)
	}
	for i, p := range got {
		if p.UID != patches[i].UID || p.Op != patches[i].Op {
			t.Errorf("patch %d = %s(%s), want %s(%s)", i, p.Op, p.UID, patches[i].Op, patches[i].UID)
		}
	}
}

func TestDecodePatchErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"not_list", "x"},
		{"short", []any{[]any{int64(1)}}},
		{"uid_not_string", []any{[]any{int64(1), int64(5), nil}}},
		{"insert_bad_payload", []any{[]any{int64(2), "p", "x"}}},
		{"insert_negative_index", []any{[]any{int64(2), "p", []any{int64(-1), "t"}}}},
		{"alter_text_bad_map", []any{[]any{int64(3), "p", map[string]any{"html": "x"}}}},
		{"props_not_map", []any{[]any{int64(4), "p", []any{"a"}}}},
		{"replace_missing_tag", []any{[]any{int64(0), "p", map[string]any{"uid": "x"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePatches(tt.raw); err == nil {
				t.Error("DecodePatches() should fail")
			}
		})
	}
}

func TestDecodePatchUnknownOpKept(t *testing.T) {
	got, err := DecodePatches([]any{[]any{int64(42), "n1", "x"}})
	if err != nil {
		t.Fatalf("DecodePatches() error = %v", err)
	}
	if got[0].Op != PatchOp(42) || got[0].Op.String() != "Unknown" {
		t.Errorf("got %+v", got[0])
	}
}

func TestReplacePropsScalarValues(t *testing.T) {
	raw := []any{[]any{int64(4), "n1", map[string]any{
		"tabindex": int64(3),
		"hidden":   true,
		"gone":     nil,
		"title":    "t",
	}}}
	got, err := DecodePatches(raw)
	if err != nil {
		t.Fatalf("DecodePatches() error = %v", err)
	}
	want := map[string]string{"tabindex": "3", "hidden": "true", "title": "t"}
	if !reflect.DeepEqual(got[0].Props, want) {
		t.Errorf("Props = %v, want %v", got[0].Props, want)
	}
}
