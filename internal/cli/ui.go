package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/fetch"
	"github.com/matzehuels/wheelwright/pkg/resolve"
)

// uiOut receives status lines. Command output goes to CLI.Stdout.
var uiOut io.Writer = os.Stderr

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - commands
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleHighlight for package names.
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	// StyleError for failing requirements.
	StyleError = lipgloss.NewStyle().Foreground(colorRed)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleHeader  = lipgloss.NewStyle().Bold(true).Foreground(colorGray)
	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Fprintln(uiOut, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintln(uiOut, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(uiOut, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Fprintln(uiOut, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// printDetail prints an indented dim line.
func printDetail(format string, args ...any) {
	fmt.Fprintln(uiOut, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a written output path.
func printFile(path string) {
	fmt.Fprintln(uiOut, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Fprintln(uiOut, keyStyle.Render(key)+" "+StyleValue.Render(value))
}

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Fprintln(uiOut, StyleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}

// =============================================================================
// Resolution Output
// =============================================================================

// printStats prints resolution statistics on a single line.
func printStats(s resolve.Stats) {
	parts := []string{
		fmt.Sprintf("%d packages", s.Packages),
		fmt.Sprintf("%d fetched", s.Fetches),
		fmt.Sprintf("%d cached", s.CacheHits),
	}
	if s.Backtracks > 0 {
		parts = append(parts, StyleWarning.Render(fmt.Sprintf("%d backtracks", s.Backtracks)))
	}
	parts = append(parts, s.Duration.Round(time.Millisecond).String())
	fmt.Fprintln(uiOut, "  "+StyleDim.Render(strings.Join(parts, " · ")))
}

// reportError prints err for a human. Conflicts and cycles get the full
// list of requirements involved; fetch failures name the package.
func reportError(w io.Writer, err error) {
	var (
		conflict *resolve.ConflictError
		cycle    *resolve.CycleError
		ferr     *fetch.FetchError
	)
	switch {
	case errors.As(err, &conflict):
		title := "Conflicting requirements on " + StyleHighlight.Render(conflict.Package)
		if conflict.Selected != "" {
			title = fmt.Sprintf("Conflict on %s (selected %s)", StyleHighlight.Render(conflict.Package), conflict.Selected)
		}
		fmt.Fprintln(w, styleIconError.Render(iconError)+" "+title)
		writeEdges(w, conflict.Requirements)
		if conflict.Available == 0 {
			fmt.Fprintln(w, "  "+StyleDim.Render("the index lists no usable releases"))
		}
		if conflict.LimitReached {
			fmt.Fprintln(w, "  "+StyleWarning.Render("backtrack limit reached; raise --max-backtracks to search further"))
		}
		fmt.Fprintln(w, "  "+styleHeader.Render("Involved:")+" "+strings.Join(conflict.Packages(), ", "))
	case errors.As(err, &cycle):
		path := strings.Join(append(append([]string{}, cycle.Cycle...), cycle.Package), " "+iconArrow+" ")
		fmt.Fprintln(w, styleIconError.Render(iconError)+" Dependency cycle "+StyleHighlight.Render(path))
		fmt.Fprintln(w, "  "+StyleDim.Render(fmt.Sprintf("%s==%s is selected but", cycle.Package, cycle.Selected))+" "+StyleError.Render(cycle.Requirement.String()))
		writeEdges(w, cycle.Requirements)
		fmt.Fprintln(w, "  "+styleHeader.Render("Involved:")+" "+strings.Join(cycle.Packages(), ", "))
	case errors.As(err, &ferr):
		fmt.Fprintln(w, styleIconError.Render(iconError)+" "+ferr.Error())
	default:
		msg := wwerrors.UserMessage(err)
		if code := wwerrors.GetCode(err); code != "" {
			msg += " " + StyleDim.Render("["+string(code)+"]")
		}
		fmt.Fprintln(w, styleIconError.Render(iconError)+" "+msg)
	}
}

func writeEdges(w io.Writer, edges []resolve.Edge) {
	for _, e := range edges {
		line := "  " + StyleError.Render(e.String())
		if len(e.Chain) > 1 {
			line += " " + StyleDim.Render("(via "+strings.Join(e.Chain, " "+iconArrow+" ")+")")
		}
		fmt.Fprintln(w, line)
	}
}

// ReportError prints err to stderr in the CLI's error style.
func ReportError(err error) {
	reportError(os.Stderr, err)
}
