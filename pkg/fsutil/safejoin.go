package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
)

// maxLinkHops bounds symlink resolution so that link cycles fail instead of looping.
const maxLinkHops = 40

// SafeJoin joins the slash-separated entry name onto root and fails with
// ErrPathTraversal when the result would land outside root. Absolute names
// and names with ".." segments that climb above root are rejected.
//
// SafeJoin only looks at the name. Use ResolveWithin when root may already
// hold symlinks.
func SafeJoin(root, name string) (string, error) {
	cleanName := path.Clean("/" + strings.ReplaceAll(name, `\`, "/"))
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) || hasParentSegment(name) {
		return "", fmt.Errorf("%s: %w", name, onboarderrors.ErrPathTraversal)
	}
	target := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(cleanName, "/")))
	if !Within(root, target) {
		return "", fmt.Errorf("%s: %w", name, onboarderrors.ErrPathTraversal)
	}
	return target, nil
}

// ResolveWithin maps the slash-separated entry name onto root the way the
// filesystem will, following symlinks already present below root. The last
// element is left unresolved so callers can replace it. The returned path is
// based on the symlink-free form of root. Any step that leaves root fails
// with ErrPathTraversal.
func ResolveWithin(root, name string) (string, error) {
	if _, err := SafeJoin(root, name); err != nil {
		return "", err
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}
	w := &confinedWalk{root: realRoot}
	return w.resolve(realRoot, name, false)
}

// EvalWithin is ResolveWithin with the last element followed too.
func EvalWithin(root, name string) (string, error) {
	if _, err := SafeJoin(root, name); err != nil {
		return "", err
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}
	w := &confinedWalk{root: realRoot}
	return w.resolve(realRoot, name, true)
}

// SafeLinkTarget checks that a symlink placed at linkPath pointing to target
// resolves inside root, following the links already on disk. Targets that
// climb out of a directory that does not exist yet are refused, since a
// later entry could turn that directory into a link.
func SafeLinkTarget(root, linkPath, target string) error {
	if filepath.IsAbs(target) || strings.HasPrefix(target, "/") {
		return fmt.Errorf("symlink %s -> %s: %w", linkPath, target, onboarderrors.ErrPathTraversal)
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return err
	}
	dir := filepath.Dir(linkPath)
	base := realRoot
	if !Within(realRoot, dir) {
		if !Within(root, dir) {
			return fmt.Errorf("symlink %s -> %s: %w", linkPath, target, onboarderrors.ErrPathTraversal)
		}
		base = root
	}
	rel, err := filepath.Rel(base, dir)
	if err != nil {
		return err
	}
	w := &confinedWalk{root: realRoot}
	if dir, err = w.resolve(realRoot, filepath.ToSlash(rel), true); err != nil {
		return fmt.Errorf("symlink %s -> %s: %w", linkPath, target, err)
	}
	w.strict = true
	if _, err := w.resolve(dir, filepath.ToSlash(target), true); err != nil {
		return fmt.Errorf("symlink %s -> %s: %w", linkPath, target, err)
	}
	return nil
}

// Within reports whether target is root or lies below it.
func Within(root, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// confinedWalk resolves relative paths one element at a time against the
// filesystem without ever leaving root.
type confinedWalk struct {
	root   string
	hops   int
	strict bool
}

func (w *confinedWalk) resolve(dir, rel string, followLast bool) (string, error) {
	segs := splitSegments(rel)
	current := dir
	missing := false
	for i, seg := range segs {
		if seg == "." {
			continue
		}
		if seg == ".." {
			if missing && w.strict {
				return "", fmt.Errorf("%s: parent of a missing directory: %w", rel, onboarderrors.ErrPathTraversal)
			}
			current = filepath.Dir(current)
			if !Within(w.root, current) {
				return "", fmt.Errorf("%s: %w", rel, onboarderrors.ErrPathTraversal)
			}
			continue
		}
		next := filepath.Join(current, seg)
		if i == len(segs)-1 && !followLast {
			current = next
			continue
		}
		info, err := os.Lstat(next)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			missing = true
			current = next
			continue
		case err != nil:
			return "", err
		case info.Mode()&fs.ModeSymlink == 0:
			current = next
			continue
		}
		w.hops++
		if w.hops > maxLinkHops {
			return "", fmt.Errorf("%s: too many levels of symbolic links: %w", rel, onboarderrors.ErrPathTraversal)
		}
		link, err := os.Readlink(next)
		if err != nil {
			return "", err
		}
		if filepath.IsAbs(link) || strings.HasPrefix(link, "/") {
			return "", fmt.Errorf("%s: absolute link %s: %w", rel, link, onboarderrors.ErrPathTraversal)
		}
		if current, err = w.resolve(current, filepath.ToSlash(link), true); err != nil {
			return "", err
		}
	}
	return current, nil
}

func splitSegments(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' })
}

func hasParentSegment(name string) bool {
	depth := 0
	for _, seg := range splitSegments(name) {
		switch seg {
		case ".", "":
		case "..":
			depth--
			if depth < 0 {
				return true
			}
		default:
			depth++
		}
	}
	return false
}
