package outwriter

import (
	"os"

	"github.com/traelabs/trae/internal/contract"
	"golang.org/x/term"
)

// Column budgets used when sizing the path column.
const (
	fixedColumnsWidth = 45 // Rank + Issues + Score + Label + DPML with borders/padding
	tableChromeWidth  = 20
	minPathWidth      = 15
	maxPathWidth      = 70
)

// GetMaxTablePathWidth calculates the maximum width for file paths in table output
// based on terminal width and table configuration.
func GetMaxTablePathWidth(cfg *contract.Config) int {
	termWidth := cfg.Width

	if termWidth <= 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	available := termWidth - fixedColumnsWidth - tableChromeWidth
	return max(minPathWidth, min(available, maxPathWidth))
}
