package hooks

import (
	"context"
	"fmt"
)

// ErrHookTypeUnknown is returned when a hook is registered under a type the
// pipeline never runs.
var ErrHookTypeUnknown = fmt.Errorf("unknown hook type")

// DefaultHookManager is the default implementation of HookManager.
type DefaultHookManager struct {
	executor *TengoExecutor
}

// NewHookManager creates a new hook manager.
func NewHookManager() *DefaultHookManager {
	return &DefaultHookManager{
		executor: NewTengoExecutor(),
	}
}

// Execute runs the specified hook type with the given context.
func (m *DefaultHookManager) Execute(ctx context.Context, hookType HookType, hctx HookContext) error {
	if !m.HasHook(hookType) {
		return nil
	}
	return m.executor.Execute(ctx, hookType, hctx)
}

// AddHook adds a new hook.
func (m *DefaultHookManager) AddHook(hook Hook) error {
	if !hook.Type.Valid() {
		return fmt.Errorf("%q: %w", hook.Type, ErrHookTypeUnknown)
	}
	m.executor.AddScript(hook.Type, hook.Content)
	return nil
}

// RemoveHook removes a hook of the specified type.
func (m *DefaultHookManager) RemoveHook(hookType HookType) error {
	if !hookType.Valid() {
		return fmt.Errorf("%q: %w", hookType, ErrHookTypeUnknown)
	}
	m.executor.RemoveScript(hookType)
	return nil
}

// HasHook checks if a hook of the specified type exists.
func (m *DefaultHookManager) HasHook(hookType HookType) bool {
	return m.executor.HasScript(hookType)
}

// Registered returns the hook types that have a script, in pipeline order.
func (m *DefaultHookManager) Registered() []HookType {
	var out []HookType
	for _, t := range Types {
		if m.HasHook(t) {
			out = append(out, t)
		}
	}
	return out
}
