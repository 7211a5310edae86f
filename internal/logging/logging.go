// Package logging wraps logrus with the project's structured field
// conventions and the banner/section console cosmetics carried over from
// the original colored logger.
package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ANSI color codes used by the cosmetic banner/section helpers below —
// these are call-site sugar printed straight to stdout, not part of the
// structured log stream.
const (
	ColorReset  = "\033[0m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
)

// New returns a logrus.Logger configured with the project's default text
// formatter (full timestamp, no forced colors so piping to a file stays
// clean).
func New(level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Section prints a cosmetic section header to stdout.
func Section(title string) {
	border := "═══════════════════════════════════════════════════════════"
	fmt.Printf("\n%s╔%s╗%s\n", ColorCyan, border, ColorReset)
	fmt.Printf("%s║%s %-57s %s║%s\n", ColorCyan, ColorReset, title, ColorCyan, ColorReset)
	fmt.Printf("%s╚%s╝%s\n\n", ColorCyan, border, ColorReset)
}

// Banner prints the application banner to stdout.
func Banner(title, version string) {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║   ███████╗ █████╗       ███╗   ███╗██████╗               ║
║   ██╔════╝██╔══██╗      ████╗ ████║██╔══██╗              ║
║   ███████╗███████║█████╗██╔████╔██║██████╔╝              ║
║   ╚════██║██╔══██║╚════╝██║╚██╔╝██║██╔═══╝               ║
║   ███████║██║  ██║      ██║ ╚═╝ ██║██║                   ║
║   ╚══════╝╚═╝  ╚═╝      ╚═╝     ╚═╝╚═╝                   ║
║                                                           ║
║              %s%-37s%s║
║                    %sVersion %-7s%s                      ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, ColorCyan, title, ColorReset, ColorGreen, version, ColorReset)
}

// Fields is a short alias for the structured-field map passed to logrus.
type Fields = logrus.Fields
