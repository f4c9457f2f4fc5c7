package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/arin/gramo/internal/ai"
	"github.com/arin/gramo/internal/config"
	"github.com/arin/gramo/internal/ui"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func refine(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if strings.TrimSpace(text) == "" {
		text = readStdin()
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("please provide some text to refine\n\nUsage: gramo [--tone formal] <text>\nExample: gramo \"i dont know\"")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if model != "" {
		cfg.Model = model
	}

	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dim := color.New(color.FgHiBlack)
	var requestID string
	client := ai.NewClient(cfg, ai.WithRequestHook(func(id string) { requestID = id }))

	if verbose {
		dim.Fprintf(os.Stderr, "  %s · %s · tone %s\n", cfg.Provider, cfg.Model, tone.Tone())
	}

	var result string
	if ui.IsTerminal(os.Stdout) && !noStream {
		result, err = refineLive(ctx, client, text)
	} else {
		result, err = refineQuiet(ctx, client, text)
	}
	if err != nil {
		return explain(ctx, err)
	}

	if verbose && requestID != "" {
		dim.Fprintf(os.Stderr, "  request %s\n", requestID)
	}
	if result == "" {
		dim.Fprintln(os.Stderr, "  The model returned no text.")
	}
	return nil
}

// refineLive streams tokens to stdout as they arrive.
func refineLive(ctx context.Context, client *ai.Client, text string) (string, error) {
	sp := ui.NewSpinner("Refining...")
	sp.Start()
	defer sp.Stop()

	fmt.Println()
	return ui.RenderStream(os.Stdout, client.RefineStream(ctx, text, tone.Tone()), "  ", sp.Stop)
}

// refineQuiet waits for the full result and prints it unindented, which
// is what scripts and redirects want.
func refineQuiet(ctx context.Context, client *ai.Client, text string) (string, error) {
	var sp *ui.Spinner
	if ui.IsTerminal(os.Stderr) {
		sp = ui.NewSpinner("Refining...")
		sp.Start()
	}
	result, err := client.Refine(ctx, text, tone.Tone(), nil)
	if sp != nil {
		sp.Stop()
	}
	if err != nil {
		return "", err
	}
	if result != "" {
		fmt.Println(result)
	}
	return result, nil
}

// explain prints a hint for classified failures and returns the error
// for main to report.
func explain(ctx context.Context, err error) error {
	yellow := color.New(color.FgYellow)

	if errors.Is(err, ai.ErrStreamClosed) && ctx.Err() != nil {
		err = ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s", timeout)
	}
	if errors.Is(err, context.Canceled) {
		return errors.New("cancelled")
	}

	var ce *ai.Error
	if !errors.As(err, &ce) {
		return err
	}
	switch ce.Kind {
	case ai.KindConfiguration:
		yellow.Fprintln(os.Stderr, "  Set a key with: gramo config set-key <api-key>  (or export GRAMO_API_KEY)")
	case ai.KindAuthentication, ai.KindAuthorization:
		yellow.Fprintln(os.Stderr, "  Check your key and provider with: gramo config show")
	case ai.KindRateLimit:
		yellow.Fprintln(os.Stderr, "  Wait a moment and run the command again.")
	case ai.KindNetwork:
		yellow.Fprintln(os.Stderr, "  Check your connection and endpoint with: gramo doctor")
	}
	if verbose && ce.RequestID != "" {
		color.New(color.FgHiBlack).Fprintf(os.Stderr, "  request %s\n", ce.RequestID)
	}
	return err
}

// readStdin reads piped input if available.
func readStdin() string {
	info, err := os.Stdin.Stat()
	if err != nil {
		return ""
	}
	// Check if data is being piped in (not a terminal).
	if (info.Mode() & os.ModeCharDevice) != 0 {
		return ""
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return ""
	}
	return string(data)
}
