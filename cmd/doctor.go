package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/arin/gramo/internal/ai"
	"github.com/arin/gramo/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const doctorTimeout = 10 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and connectivity",
	Long: `Run a health check on your gramo setup.
Verifies the config file, API key, provider, and that the endpoint
accepts your key. No text is sent to the model.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)
		cyan := color.New(color.FgCyan, color.Bold)

		cyan.Fprintf(os.Stderr, "\n  🩺 gramo doctor\n\n")

		pass, fail, warn := 0, 0, 0

		check := func(name string, fn func() (string, error)) {
			detail, err := fn()
			if err != nil {
				if strings.HasPrefix(err.Error(), "warn:") {
					yellow.Fprintf(os.Stderr, "  ⚠ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", strings.TrimPrefix(err.Error(), "warn:"))
					warn++
				} else {
					red.Fprintf(os.Stderr, "  ✗ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", err.Error())
					fail++
				}
			} else {
				green.Fprintf(os.Stderr, "  ✓ %s", name)
				if detail != "" {
					dim.Fprintf(os.Stderr, " — %s", detail)
				}
				fmt.Fprintln(os.Stderr)
				pass++
			}
		}

		// 1. Config file
		cfg, loadErr := config.Load()
		check("Config readable", func() (string, error) {
			if loadErr != nil {
				return "", fmt.Errorf("%v — fix or delete %s", loadErr, config.Dir())
			}
			if _, err := os.Stat(config.Dir()); err != nil {
				return "", fmt.Errorf("warn:%s not found — it is created by gramo config", config.Dir())
			}
			return config.Dir(), nil
		})
		if loadErr != nil {
			return summarize(pass, fail, warn)
		}

		// 2. API key
		check("API key configured", func() (string, error) {
			if cfg.APIKey == "" {
				return "", fmt.Errorf("run: gramo config set-key <api-key>  (or export GRAMO_API_KEY)")
			}
			return config.MaskKey(cfg.APIKey), nil
		})

		// 3. Provider
		check(fmt.Sprintf("Provider known (%s)", cfg.Provider), func() (string, error) {
			if _, ok := ai.LookupPreset(cfg.Provider); !ok {
				return "", fmt.Errorf("known providers: %s", strings.Join(ai.PresetNames(), ", "))
			}
			return effectiveBaseURL(cfg), nil
		})

		// 4. Endpoint accepts the key
		check("Endpoint reachable", func() (string, error) {
			ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
			defer cancel()
			err := ai.NewClient(cfg).Ping(ctx)
			switch {
			case err == nil:
				return "credentials accepted", nil
			case errors.Is(err, context.DeadlineExceeded):
				return "", fmt.Errorf("no response within %s", doctorTimeout)
			case ai.IsKind(err, ai.KindConfiguration):
				return "", fmt.Errorf("warn:skipped — %v", err)
			default:
				return "", err
			}
		})

		// 5. OS and arch
		check("System info", func() (string, error) {
			return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), nil
		})

		return summarize(pass, fail, warn)
	},
}

// summarize prints the tally. It returns an error when any check failed;
// warnings alone do not fail.
func summarize(pass, fail, warn int) error {
	fmt.Fprintln(os.Stderr)
	total := pass + fail + warn
	switch {
	case fail == 0 && warn == 0:
		color.New(color.FgGreen).Fprintf(os.Stderr, "  All %d checks passed. You're good to go.\n\n", total)
	case fail == 0:
		color.New(color.FgYellow).Fprintf(os.Stderr, "  %d passed, %d warnings.\n\n", pass, warn)
	default:
		color.New(color.FgRed).Fprintf(os.Stderr, "  %d passed, %d failed, %d warnings. Fix the failures above.\n\n", pass, fail, warn)
		return fmt.Errorf("%d of %d checks failed", fail, total)
	}
	return nil
}
