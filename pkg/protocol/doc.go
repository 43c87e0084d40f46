// Package protocol implements the livesync wire protocol.
//
// Every frame is a single positional array whose element 0 is an integer
// opcode. The remaining elements are payload fields; there are no field
// names on the wire. Frames are encoded with msgpack, which is
// self-describing and schema-less, so payloads can freely mix primitives
// with nested tree fragments.
//
// # Frames
//
// Client → authority:
//
//	[0, page_uid, target_uid, event_name, value, is_document_scoped]   DISPATCH_COMPONENT_EVENT
//	[1, result, error_or_null, correlation_uid]                         EXECUTE_JS_RESULT
//	[2, current_page_uid, known_next_uid_or_null, path, headers]        NAVIGATE_TO
//
// Authority → client:
//
//	[16, [[op, uid, payload], ...]]                                     APPLY_PATCH
//	[17, code, result_expr_or_null, timeout_ms_or_null, feedback, uid]  EXECUTE_JS
//	[18, path, full_reload, next_page_uid, patches, is_final]           NAVIGATION_RESULT
//	[19, must_reload]                                                   COMPONENT_UNKNOWN
//
// # Patches
//
// A patch is [op, uid, payload]. Opcode values are fixed for a protocol
// version because both ends hardcode them:
//
//	REPLACE_NODE=0  payload: subtree
//	REMOVE_NODE=1   payload: nil
//	INSERT_NODE=2   payload: [index, subtree]   (uid is the parent)
//	ALTER_TEXT=3    payload: "text" or {"markup": "<b>..</b>"}
//	REPLACE_PROPS=4 payload: {name: value}
//	REPLACE_STYLE=5 payload: {property: value}
//
// # Subtrees
//
// A subtree is either a string (a text node) or a map with the keys tag,
// uid, props, style, text and children.
//
// # Usage Example
//
//	c := protocol.NewCodec()
//
//	data, err := c.Encode(protocol.ApplyPatchFrame([]protocol.Patch{
//	    protocol.NewAlterTextPatch("t1", "Hello"),
//	}))
//
//	frame, err := c.Decode(data)
//	if err != nil {
//	    // log and drop; the connection stays open
//	}
//	patches, err := protocol.DecodeApplyPatch(frame)
package protocol
