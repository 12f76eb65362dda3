package uploads

import (
	"fmt"
	"io"
	"strings"
)

const progressBarWidth = 32

// ProgressPrinter renders part-level progress as a single terminal line.
func ProgressPrinter(w io.Writer, label string) ProgressFunc {
	return func(percentage int) {
		if percentage < 0 {
			percentage = 0
		}
		if percentage > 100 {
			percentage = 100
		}
		filled := percentage * progressBarWidth / 100

		var b strings.Builder
		b.WriteString("\r")
		b.WriteString(label)
		b.WriteString(" [")
		b.WriteString(strings.Repeat("=", filled))
		b.WriteString(strings.Repeat(" ", progressBarWidth-filled))
		fmt.Fprintf(&b, "] %3d%%", percentage)
		if percentage == 100 {
			b.WriteString("\n")
		}
		io.WriteString(w, b.String())
	}
}
