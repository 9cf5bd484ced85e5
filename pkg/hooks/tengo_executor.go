package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
)

// TengoExecutor handles the execution of Tengo scripts.
type TengoExecutor struct {
	scripts map[HookType]string
	mutex   sync.RWMutex
}

// NewTengoExecutor creates a new Tengo script executor.
func NewTengoExecutor() *TengoExecutor {
	return &TengoExecutor{
		scripts: make(map[HookType]string),
	}
}

// Execute runs the script registered for hookType. A script signals failure
// by setting a global `err` to an error value or a non-empty string.
func (e *TengoExecutor) Execute(ctx context.Context, hookType HookType, hctx HookContext) error {
	e.mutex.RLock()
	script, exists := e.scripts[hookType]
	e.mutex.RUnlock()
	if !exists {
		return nil
	}

	scriptInstance := tengo.NewScript([]byte(script))
	scriptInstance.SetImports(stdlib.GetModuleMap("fmt", "os", "text", "times", "json"))

	files := make([]interface{}, 0, len(hctx.Files))
	for _, f := range hctx.Files {
		files = append(files, f)
	}
	vars := map[string]interface{}{
		"runId":  hctx.RunID,
		"source": hctx.Source,
		"stage":  hctx.Stage,
		"path":   hctx.Path,
		"name":   hctx.Name,
		"hash":   hctx.Hash,
		"files":  files,
		"err":    "",
	}
	for k, v := range hctx.Vars {
		vars[k] = v
	}
	for k, v := range vars {
		if err := scriptInstance.Add(k, v); err != nil {
			return fmt.Errorf("failed to add variable '%s' to script: %w", k, err)
		}
	}

	compiled, err := scriptInstance.RunContext(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", hookType, onboarderrors.ErrHookExecution, err)
	}

	if errVar := compiled.Get("err"); errVar != nil {
		if obj, ok := errVar.Object().(*tengo.Error); ok {
			return fmt.Errorf("%s: %w: %s", hookType, onboarderrors.ErrHookScript, obj.Value.String())
		}
		switch v := errVar.Value().(type) {
		case error:
			return fmt.Errorf("%s: %w: %w", hookType, onboarderrors.ErrHookScript, v)
		case string:
			if v != "" {
				return fmt.Errorf("%s: %w: %s", hookType, onboarderrors.ErrHookScript, v)
			}
		}
	}

	return nil
}

// AddScript adds or updates a script for the specified hook type.
func (e *TengoExecutor) AddScript(hookType HookType, script string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.scripts[hookType] = script
}

// RemoveScript removes the script for the specified hook type.
func (e *TengoExecutor) RemoveScript(hookType HookType) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.scripts, hookType)
}

// HasScript checks if a script exists for the specified hook type.
func (e *TengoExecutor) HasScript(hookType HookType) bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	_, exists := e.scripts[hookType]
	return exists
}
