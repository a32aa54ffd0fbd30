package errors

import "sort"

// Template is the registered text of an error code.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

const docBase = "https://github.com/vango-dev/reactive/blob/main/docs/errors.md#"

func docURL(code string) string {
	return docBase + code
}

var registry = map[string]Template{
	// ============================================
	// Runtime Errors (R001-R099)
	// ============================================

	"R001": {
		Category: CategoryRuntime,
		Message:  "Use after dispose",
		Detail:   "A signal, memo, effect or stored value was used after the scope that owned it was disposed. The handle is stale; reads return the last-known value and writes do nothing.",
	},
	"R002": {
		Category: CategoryRuntime,
		Message:  "Infinite update loop",
		Detail:   "An effect kept scheduling itself within one update and was stopped at the rerun limit. The remaining effects of that update still ran.",
	},
	"R003": {
		Category: CategoryRuntime,
		Message:  "Closure panicked",
		Detail:   "An effect or memo closure panicked. The panic was recovered; the node kept its previous value and will run again on the next change of a dependency.",
	},
	"R004": {
		Category: CategoryRuntime,
		Message:  "Runtime disposed",
		Detail:   "The runtime was disposed. Every later create, read or write through it is rejected; reads return the last-known value.",
	},

	// ============================================
	// Config Errors (R101-R199)
	// ============================================

	"R101": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No reactive.json was found in the current directory or any parent directory.",
	},
	"R102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "reactive.json could not be parsed as JSON or holds a value of the wrong type.",
	},
	"R103": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A value in reactive.json is out of range or not one of the accepted choices.",
	},
	"R104": {
		Category: CategoryConfig,
		Message:  "Configuration file not written",
		Detail:   "reactive.json could not be written.",
	},

	// ============================================
	// CLI Errors (R201-R299)
	// ============================================

	"R201": {
		Category: CategoryCLI,
		Message:  "Unknown demo",
		Detail:   "The demo command runs one of a fixed set of scenarios.",
	},
	"R202": {
		Category: CategoryCLI,
		Message:  "Invalid flag value",
	},

	// ============================================
	// Inspector Errors (R301-R399)
	// ============================================

	"R301": {
		Category: CategoryInspect,
		Message:  "Inspector failed to listen",
		Detail:   "The inspector could not bind its address. Another process may be using the port.",
	},
	"R302": {
		Category: CategoryInspect,
		Message:  "Event stream upgrade failed",
		Detail:   "The /events endpoint only accepts WebSocket connections.",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

// Codes returns every registered code in order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
