package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	// fatih/color disables these when the output is not a TTY
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	valueColor   = color.New(color.FgHiBlack)
)

// printSection prints a section header
func printSection(w io.Writer, title string) {
	_, _ = headerColor.Fprintf(w, "▸ %s\n", title)
}

// printSuccess prints a success message with a checkmark
func printSuccess(w io.Writer, msg string) {
	_, _ = successColor.Fprintf(w, "✓ %s\n", msg)
}

// printWarning prints a warning message with a warning symbol
func printWarning(w io.Writer, msg string) {
	_, _ = warningColor.Fprintf(w, "⚠ %s\n", msg)
}

// printLabelValue prints a label-value pair
func printLabelValue(w io.Writer, label, value string) {
	_, _ = labelColor.Fprintf(w, "  %s: ", label)
	_, _ = valueColor.Fprintln(w, value)
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatPosition(x, y, z float64) string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", x, y, z)
}
