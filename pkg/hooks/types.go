package hooks

import "context"

// HookType names the pipeline stage a hook script runs after.
type HookType string

// Supported hook types.
const (
	PostFetch    HookType = "post-fetch"
	PostExtract  HookType = "post-extract"
	PostAssemble HookType = "post-assemble"
)

// Types lists the hook types in the order the pipeline reaches them.
var Types = []HookType{PostFetch, PostExtract, PostAssemble}

// Valid reports whether t is one of the supported hook types.
func (t HookType) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Hook is a script bound to a hook type.
type Hook struct {
	Type    HookType
	Content string
}

// HookContext is what a script sees about the invocation it runs in.
type HookContext struct {
	RunID  string
	Source string
	Stage  string
	Path   string
	Name   string
	Hash   string
	// Files holds the relative paths of the bundle members (post-assemble only).
	Files []string
	Vars  map[string]interface{}
}

// HookManager defines the interface for managing hooks.
type HookManager interface {
	// Execute runs the hook of the given type, if one is registered.
	Execute(ctx context.Context, hookType HookType, hctx HookContext) error

	// AddHook adds or replaces a hook.
	AddHook(hook Hook) error

	// RemoveHook removes the hook of the given type.
	RemoveHook(hookType HookType) error

	// HasHook checks if a hook of the given type exists.
	HasHook(hookType HookType) bool
}
