package cmd

import (
	"context"
	"time"

	"github.com/arin/gramo/internal/ai"
	"github.com/spf13/cobra"
)

var (
	tone     = toneValue(ai.ToneNeutral)
	model    string
	noStream bool
	timeout  time.Duration
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "gramo [text to refine]",
	Short: "Fix grammar and adjust the tone of text with AI",
	Long: `gramo corrects grammar, punctuation, and spelling, and rewrites text
in the tone you choose. The refined text streams to your terminal as the
model writes it.

Examples:
  gramo "i dont know what your talking about"
  gramo --tone formal "hey, cant make it tmrw, sorry"
  pbpaste | gramo -t casual
  gramo -t formal < draft.txt > final.txt

Set your API key first: gramo config set-key <key>`,
	RunE:                       refine,
	SilenceUsage:               true,
	SilenceErrors:              true,
	TraverseChildren:           true,
	SuggestionsMinimumDistance: 1,
}

func init() {
	rootCmd.Flags().VarP(&tone, "tone", "t", "Target tone: neutral, formal, or casual")
	rootCmd.Flags().StringVar(&model, "model", "", "Model to use for this run (overrides config)")
	rootCmd.Flags().BoolVar(&noStream, "no-stream", false, "Print the result only when it is complete")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (e.g. 30s); 0 waits for the stream to finish")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show provider, model, and request id")
	_ = rootCmd.RegisterFlagCompletionFunc("tone", completeTone)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(tonesCmd)
	rootCmd.AddCommand(doctorCmd)
}

// SetVersion sets the string printed by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the entry point called from main. Cancelling ctx aborts an
// in-flight request.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
