package cli

// Default values for CLI flags and output.
const (
	// TabWidth is the width of tabs in formatted output.
	TabWidth = 2
	// ShortIDLength is how much of a run id is shown in event lines.
	ShortIDLength = 8
	// ProgressWidth is the width of a download progress bar.
	ProgressWidth = 40
	// ProgressThrottle is the minimum number of milliseconds between redraws.
	ProgressThrottle = 100
)

// Output formats accepted by --output.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
	formatCBOR = "cbor"
)
