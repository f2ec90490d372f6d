// main is the entry point of the trae CLI.
package main

import (
	"fmt"
	"os"

	"github.com/traelabs/trae/cmd"
)

func main() {
	err := cmd.Execute()
	if stopErr := cmd.StopProfiling(); stopErr != nil {
		fmt.Fprintln(os.Stderr, "❌", stopErr)
	}
	if closeErr := cmd.CloseStores(); closeErr != nil {
		fmt.Fprintln(os.Stderr, "❌", closeErr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
