package errors

// Registered error codes.
const (
	CodeDecode          = "E101"
	CodeUnknownOpcode   = "E102"
	CodeCollision       = "E201"
	CodeUnknownUID      = "E202"
	CodeChannelClosed   = "E301"
	CodeReconnectFailed = "E302"
	CodeExecFailed      = "E401"
	CodeExecTimeout     = "E402"
	CodeNavInFlight     = "E501"
	CodeDesync          = "E502"
	CodeDrift           = "E601"
	CodeConfig          = "E701"
)

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Protocol Errors (E100-E199)
	// ============================================

	CodeDecode: {
		Category: CategoryProtocol,
		Message:  "Malformed frame",
		Detail:   "The frame could not be decoded. It is dropped; the connection stays open.",
	},
	CodeUnknownOpcode: {
		Category: CategoryProtocol,
		Message:  "Unknown opcode",
		Detail:   "The frame carries an opcode this client does not understand. It is ignored.",
	},

	// ============================================
	// Registry Errors (E200-E299)
	// ============================================

	CodeCollision: {
		Category: CategoryRegistry,
		Message:  "UID already registered",
		Detail:   "The authority introduced a node whose UID is still bound to another live node.",
	},
	CodeUnknownUID: {
		Category: CategoryRegistry,
		Message:  "UID not registered",
		Detail:   "A patch addressed a node that is not in the registry. The patch is a no-op.",
	},

	// ============================================
	// Connection Errors (E300-E399)
	// ============================================

	CodeChannelClosed: {
		Category: CategoryConnection,
		Message:  "Channel not open",
		Detail:   "The frame could not be sent because the channel is closed.",
	},
	CodeReconnectFailed: {
		Category: CategoryConnection,
		Message:  "Reconnect attempts exhausted",
		Detail:   "The reconnection loop reached its attempt limit.",
	},

	// ============================================
	// Remote Execution Errors (E400-E499)
	// ============================================

	CodeExecFailed: {
		Category: CategoryExec,
		Message:  "Remote execution failed",
	},
	CodeExecTimeout: {
		Category: CategoryExec,
		Message:  "Remote execution timed out",
		Detail:   "The instruction block did not complete before its deadline; no feedback is sent.",
	},

	// ============================================
	// Navigation Errors (E500-E599)
	// ============================================

	CodeNavInFlight: {
		Category: CategoryNavigation,
		Message:  "Navigation already in flight",
		Detail:   "Only one navigation may be pending per connection; the request was rejected.",
	},
	CodeDesync: {
		Category: CategoryNavigation,
		Message:  "Authority desync",
		Detail:   "The authority no longer recognises this page. A hard reload is required.",
	},

	// ============================================
	// Drift (E600-E699)
	// ============================================

	CodeDrift: {
		Category: CategoryDrift,
		Message:  "Unmanaged mutation of a managed node",
		Detail:   "The tree was changed outside the patch engine. The change may be lost on the next patch.",
	},

	// ============================================
	// Config (E700-E799)
	// ============================================

	CodeConfig: {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
