package hooks

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
)

// HookFileExtension is the extension hook scripts are looked up by.
const HookFileExtension = ".tengo"

// LoadHooksFromDir registers every <hook-type>.tengo script found in dir.
// A missing directory is not an error; files that do not name a known hook
// type are ignored.
func LoadHooksFromDir(manager HookManager, dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return onboarderrors.Wrapf(err, "failed to read hooks directory %s", dir)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != HookFileExtension {
			continue
		}

		hookType := HookType(strings.TrimSuffix(entry.Name(), HookFileExtension))
		if !hookType.Valid() {
			continue
		}

		hookPath := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(hookPath)
		if err != nil {
			return onboarderrors.Wrapf(err, "error reading hook file %s", hookPath)
		}

		if err := manager.AddHook(Hook{Type: hookType, Content: string(content)}); err != nil {
			return onboarderrors.Wrapf(err, "error adding hook %s", hookType)
		}
	}

	return nil
}

// HookTemplate generates a starter script for a hook type.
func HookTemplate(hookType HookType) string {
	const vars = `// Available variables:
// - runId: string - id of the onboarding invocation
// - source: string - URL, record URI or local path being onboarded
// - stage: string - pipeline stage that just finished
// - path: string - file or directory produced by that stage
// - name: string - display name of the result
// - hash: string - content hash (empty until it is known)
// - files: array - bundle member paths (post-assemble only)
//
// Set err to a non-empty string to abort the onboarding.
`
	switch hookType {
	case PostFetch:
		return `// Post-fetch hook
// This script runs after a file was downloaded and verified
` + vars + `
// Example: refuse empty downloads
/*
os := import("os")
if os.stat(path).size == 0 {
    err = "downloaded file is empty: " + source
}
*/`

	case PostExtract:
		return `// Post-extract hook
// This script runs after an archive was unpacked
` + vars + `
// Example: require a README at the archive root
/*
os := import("os")
if is_error(os.stat(path + "/README.md")) {
    err = "archive has no README.md"
}
*/`

	case PostAssemble:
		return `// Post-assemble hook
// This script runs after the bundle was built
` + vars + `
// Example: reject bundles without CSV data
/*
text := import("text")
found := false
for f in files {
    if text.has_suffix(f, ".csv") { found = true }
}
if !found { err = "bundle " + name + " contains no csv files" }
*/`

	default:
		return "// Unknown hook type: " + string(hookType)
	}
}
