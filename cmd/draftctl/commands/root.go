// Package commands implements the draftctl command tree.
package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/draftlens/backend/config"
	"github.com/draftlens/backend/internal/observability"
)

// cli carries the state shared by every subcommand
type cli struct {
	cfgFile  string
	noColor  bool
	logLevel string

	cfg    *config.Config
	logger zerolog.Logger

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// NewRootCmd builds the draftctl command tree over the given streams
func NewRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	c := &cli{in: in, out: out, errOut: errOut, logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "draftctl",
		Short: "DraftLens operator CLI",
		Long: `draftctl runs the DraftLens extraction pipeline locally: turn a pasted
product description into a structured draft, and expand size and colour
selections into a variant matrix.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "", "config file path")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newAnalyzeCmd(c))
	root.AddCommand(newVariantsCmd(c))

	return root
}

func (c *cli) setup(cmd *cobra.Command, args []string) error {
	if c.noColor {
		color.NoColor = true
	}

	cfg, err := config.LoadFile(c.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	c.logger = observability.NewLogger(observability.LogConfig{
		Level:       c.logLevel,
		Format:      "console",
		Output:      c.errOut,
		ServiceName: "draftctl",
	})
	return nil
}
