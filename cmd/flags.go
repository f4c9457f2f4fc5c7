package cmd

import (
	"github.com/arin/gramo/internal/ai"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// toneValue is a pflag.Value that only accepts known tones.
type toneValue ai.Tone

var _ pflag.Value = (*toneValue)(nil)

func (t *toneValue) String() string { return string(*t) }

func (t *toneValue) Set(s string) error {
	parsed, err := ai.ParseTone(s)
	if err != nil {
		return err
	}
	*t = toneValue(parsed)
	return nil
}

func (t *toneValue) Type() string { return "tone" }

func (t *toneValue) Tone() ai.Tone { return ai.Tone(*t) }

func completeTone(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, info := range ai.Tones() {
		out = append(out, string(info.Tone)+"\t"+info.Description)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
