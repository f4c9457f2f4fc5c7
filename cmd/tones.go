package cmd

import (
	"fmt"
	"os"

	"github.com/arin/gramo/internal/ai"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var tonesCmd = &cobra.Command{
	Use:   "tones",
	Short: "List the available tones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cyan := color.New(color.FgCyan, color.Bold)
		dim := color.New(color.FgHiBlack)

		fmt.Fprintln(os.Stderr)
		for _, info := range ai.Tones() {
			cyan.Printf("  %-8s", info.Tone)
			fmt.Printf(" %-8s", info.Label)
			dim.Printf(" %s\n", info.Description)
		}
		fmt.Println()
		return nil
	},
}
