package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"repverse/internal/app"
	"repverse/internal/domain/marketplace"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"golang.org/x/term"
)

const bulletIndent = "    "

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func printStatus(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, cyan(fmt.Sprintf(format, args...)))
}

func printError(w io.Writer, err error) {
	message := app.PublicMessage(err)
	if message == "" {
		message = err.Error()
	}
	fmt.Fprintln(w, red("error: "+message))
}

func printQuality(w io.Writer, result marketplace.QualityCheckResult, passThreshold float64) {
	verdict := green("PASS")
	if result.Quality <= passThreshold {
		verdict = red("BELOW GATE")
	}
	fmt.Fprintf(w, "%s %.2f/10  %s (gate > %.1f)\n", bold("quality:"), result.Quality, verdict, passThreshold)
	printList(w, green("+"), "strengths", result.PositiveFeedback)
	printList(w, yellow("-"), "improvements", result.NegativeFeedback)
}

func printList(w io.Writer, bullet, heading string, items []string) {
	fmt.Fprintln(w, bold(heading+":"))
	if len(items) == 0 {
		fmt.Fprintln(w, gray("  (none)"))
		return
	}
	width := terminalWidth(w) - len(bulletIndent)
	for _, item := range items {
		fmt.Fprintf(w, "  %s %s\n", bullet, wrapItem(item, width))
	}
}

// terminalWidth returns the column count of w when it is a terminal, else 0.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// wrapItem word-wraps item to width and hangs continuation lines under the
// bullet text. A non-positive width leaves item untouched.
func wrapItem(item string, width int) string {
	if width <= 0 {
		return item
	}
	lines := strings.Split(lipgloss.NewStyle().Width(width).Render(item), "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, " ")
		if i > 0 {
			line = bulletIndent + line
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
