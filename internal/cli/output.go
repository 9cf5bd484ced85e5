package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/codec"
	"github.com/glorpus-work/onboard/pkg/model"
	"gopkg.in/yaml.v3"
)

// render writes v to w in the given output format. Text output knows how
// to lay out files, bundles and module results; anything else is printed
// with %v.
func render(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(TabWidth)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case formatCBOR:
		return codec.NewEncoder(w).Encode(v)
	case formatText, "":
		return renderText(w, v)
	default:
		return fmt.Errorf("%w: %s", onboarderrors.ErrInvalidOutputFmt, format)
	}
}

func renderText(w io.Writer, v any) error {
	tw := tabwriter.NewWriter(w, 0, 0, TabWidth, ' ', 0)
	switch val := v.(type) {
	case *model.File:
		writeFile(tw, val)
	case *model.FileBundle:
		writeBundle(tw, val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(tw, "[%s]\n", k)
			_ = tw.Flush()
			if err := renderText(w, val[k]); err != nil {
				return err
			}
		}
	default:
		_, _ = fmt.Fprintf(tw, "%v\n", v)
	}
	return tw.Flush()
}

func writeFile(w io.Writer, f *model.File) {
	_, _ = fmt.Fprintf(w, "Name:\t%s\n", f.Name)
	_, _ = fmt.Fprintf(w, "Path:\t%s\n", f.Path)
	_, _ = fmt.Fprintf(w, "Size:\t%d\n", f.Size)
	_, _ = fmt.Fprintf(w, "Hash:\t%s\n", f.Hash)
	writeMetadataKeys(w, f.Metadata)
}

func writeBundle(w io.Writer, b *model.FileBundle) {
	_, _ = fmt.Fprintf(w, "Name:\t%s\n", b.Name)
	_, _ = fmt.Fprintf(w, "Root:\t%s\n", b.Root)
	_, _ = fmt.Fprintf(w, "Files:\t%d\n", b.NumberOfFiles)
	_, _ = fmt.Fprintf(w, "Size:\t%d\n", b.Size)
	_, _ = fmt.Fprintf(w, "Hash:\t%s\n", b.Hash)
	writeMetadataKeys(w, b.Metadata)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "PATH\tSIZE\tHASH")
	for _, key := range b.Keys() {
		f := b.IncludedFiles[key]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", key, f.Size, f.Hash)
	}
}

func writeMetadataKeys(w io.Writer, metadata map[string]any) {
	if len(metadata) == 0 {
		return
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	_, _ = fmt.Fprintf(w, "Metadata:\t%v\n", keys)
}
