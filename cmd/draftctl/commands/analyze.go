package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/draftlens/backend/internal/app"
	"github.com/draftlens/backend/internal/domain"
	"github.com/draftlens/backend/internal/usecase"
)

type analyzeOptions struct {
	file          string
	text          string
	images        []string
	mode          string
	strict        bool
	provider      string
	forceExternal bool
	variants      bool
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Extract a structured draft from product text",
		Long: `Run the extraction pipeline on product text and print the merged draft as
JSON. Text comes from --text, from --file, or from stdin with --file -.`,
		Example: `  draftctl analyze --text "فستان سهرة مقاس M L السعر 250 ريال"
  draftctl analyze --file listing.txt --image photo.jpg --mode ai --provider openrouter`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAnalyze(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read product text from a file (- for stdin)")
	cmd.Flags().StringVarP(&opts.text, "text", "t", "", "product text")
	cmd.Flags().StringArrayVarP(&opts.images, "image", "i", nil, "product photo reference (repeatable)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "extraction mode: rules, ai or assist")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "strip marketing noise aggressively")
	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "", "external provider name")
	cmd.Flags().BoolVar(&opts.forceExternal, "force-external", false, "call the provider even when rules cover the core fields")
	cmd.Flags().BoolVar(&opts.variants, "variants", false, "also print the variant matrix suggested by the draft")
	cmd.MarkFlagsMutuallyExclusive("file", "text")

	return cmd
}

func (c *cli) runAnalyze(ctx context.Context, opts *analyzeOptions) error {
	text, err := c.readText(opts)
	if err != nil {
		return err
	}

	flags, err := analysisFlags(opts)
	if err != nil {
		return err
	}

	pipeline, err := app.New(ctx, c.cfg, c.logger, app.Options{WithoutStorage: true, OperatorImages: true})
	if err != nil {
		return err
	}
	defer pipeline.Close()

	req := &usecase.AnalyzeRequest{Text: text, Flags: flags}
	for _, ref := range opts.images {
		req.Images = append(req.Images, domain.ImageInput{Ref: ref})
	}

	session, err := pipeline.Service.Analyze(ctx, req)
	empty := errors.Is(err, domain.ErrNothingExtracted) && session != nil
	if err != nil && !empty {
		return fmt.Errorf("analyze: %w", err)
	}

	if werr := writeJSON(c.out, session.Draft); werr != nil {
		return werr
	}
	printWarnings(c.errOut, session.Draft)
	if empty {
		return err
	}

	if opts.variants {
		records, err := pipeline.Service.GenerateVariants(ctx, usecase.SuggestVariantRequest(session.Draft))
		if err != nil {
			return fmt.Errorf("generate variants: %w", err)
		}
		fmt.Fprintln(c.out)
		printVariants(c.out, records)
	}
	return nil
}

func (c *cli) readText(opts *analyzeOptions) (string, error) {
	switch {
	case opts.text != "":
		return opts.text, nil
	case opts.file == "-":
		b, err := io.ReadAll(c.in)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	case opts.file != "":
		b, err := os.ReadFile(opts.file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", opts.file, err)
		}
		return string(b), nil
	case len(opts.images) > 0:
		return "", nil
	default:
		return "", errors.New("no input: use --text, --file or --image")
	}
}

// analysisFlags maps the CLI switches onto the pipeline flags
func analysisFlags(opts *analyzeOptions) (domain.AnalysisFlags, error) {
	flags := domain.AnalysisFlags{
		Strict:        opts.strict,
		Provider:      opts.provider,
		ForceExternal: opts.forceExternal,
	}
	switch domain.Mode(strings.ToLower(opts.mode)) {
	case "", domain.ModeAssist:
	case domain.ModeRules:
		flags.RulesOnly = true
	case domain.ModeAI:
		flags.ExternalOnly = true
	default:
		return flags, fmt.Errorf("unknown mode %q (want rules, ai or assist)", opts.mode)
	}
	return flags, nil
}
