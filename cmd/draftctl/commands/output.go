package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/draftlens/backend/internal/domain"
)

var (
	warnColor  = color.New(color.FgYellow, color.Bold)
	errorColor = color.New(color.FgRed, color.Bold)
	okColor    = color.New(color.FgGreen)
	dimColor   = color.New(color.Faint)
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// printWarnings writes the draft's warnings and provider errors in colour
func printWarnings(w io.Writer, draft *domain.ProductDraft) {
	if draft == nil {
		return
	}
	for _, warning := range draft.Warnings {
		warnColor.Fprint(w, "warning: ")
		fmt.Fprintln(w, warning)
	}
	for _, e := range draft.Errors {
		errorColor.Fprint(w, "error: ")
		fmt.Fprintln(w, e)
	}
	okColor.Fprintf(w, "%d fields found", draft.FoundCount())
	dimColor.Fprintf(w, " (mode %s)\n", draft.Mode)
}

// printVariants renders the matrix as an aligned table
func printVariants(w io.Writer, records []domain.VariantRecord) {
	if len(records) == 0 {
		dimColor.Fprintln(w, "no variants: select at least one size or colour")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tSIZE\tCOLOR\tPRICE\tSTOCK")
	fmt.Fprintln(tw, "---\t----\t-----\t-----\t-----")
	for _, r := range records {
		fmt.Fprintln(tw, strings.Join([]string{
			r.SKU,
			dash(r.Size),
			dash(r.Color),
			formatPrice(r.Price),
			strconv.Itoa(r.StockQuantity),
		}, "\t"))
	}
	_ = tw.Flush()

	dimColor.Fprintf(w, "%d variants\n", len(records))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}
