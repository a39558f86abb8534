package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/draftlens/backend/internal/domain"
	"github.com/draftlens/backend/internal/usecase"
)

type variantsOptions struct {
	dimensions    []string
	colors        []string
	seed          string
	price         float64
	purchasePrice float64
	stock         int
	unique        bool
	asJSON        bool
}

func newVariantsCmd(c *cli) *cobra.Command {
	opts := &variantsOptions{}

	cmd := &cobra.Command{
		Use:   "variants",
		Short: "Expand size and colour selections into a variant matrix",
		Example: `  draftctl variants --dimension "Letter=M,L" --dimension "Waist=30,32" \
    --colors Red,Blue --seed "Evening Dress" --price 120 --stock 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(cmd)
			if err != nil {
				return err
			}
			return c.runVariants(req, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.dimensions, "dimension", "d", nil, `size dimension as "Name=v1,v2" (repeatable, at most two)`)
	cmd.Flags().StringSliceVar(&opts.colors, "colors", nil, "comma-separated colour names")
	cmd.Flags().StringVarP(&opts.seed, "seed", "s", "", "SKU seed, usually the model or product name")
	cmd.Flags().Float64Var(&opts.price, "price", 0, "sale price applied to every variant")
	cmd.Flags().Float64Var(&opts.purchasePrice, "purchase-price", 0, "purchase price applied to every variant")
	cmd.Flags().IntVar(&opts.stock, "stock", 0, "stock quantity per variant")
	cmd.Flags().BoolVar(&opts.unique, "unique", false, "suffix duplicate SKUs")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")

	return cmd
}

func (c *cli) runVariants(req *domain.VariantRequest, opts *variantsOptions) error {
	generator := usecase.NewVariantGenerator(usecase.VariantConfig{
		SeedLength:       c.cfg.Variants.SeedLength,
		TokenLength:      c.cfg.Variants.TokenLength,
		EnsureUniqueSKUs: c.cfg.Variants.EnsureUniqueSKUs || opts.unique,
	}, c.logger)

	records, err := generator.Generate(req)
	if err != nil {
		return fmt.Errorf("generate variants: %w", err)
	}

	if opts.asJSON {
		return writeJSON(c.out, records)
	}
	printVariants(c.out, records)
	return nil
}

func (o *variantsOptions) request(cmd *cobra.Command) (*domain.VariantRequest, error) {
	req := &domain.VariantRequest{
		SKUSeed:       o.seed,
		StockQuantity: o.stock,
	}
	if o.stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", domain.ErrInvalidRequest)
	}

	for _, raw := range o.dimensions {
		dim, err := parseDimension(raw)
		if err != nil {
			return nil, err
		}
		req.Dimensions = append(req.Dimensions, dim)
	}

	for i, name := range o.colors {
		if name = strings.TrimSpace(name); name != "" {
			req.Colors = append(req.Colors, domain.ColorSelection{ColorName: name, IsPrimary: i == 0})
		}
	}

	if cmd.Flags().Changed("price") {
		price := o.price
		req.Price = &price
	}
	if cmd.Flags().Changed("purchase-price") {
		price := o.purchasePrice
		req.PurchasePrice = &price
	}
	return req, nil
}

// parseDimension reads "Name=v1,v2" into a size dimension selection
func parseDimension(raw string) (domain.SizeDimensionSelection, error) {
	name, values, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return domain.SizeDimensionSelection{}, fmt.Errorf("%w: dimension %q must look like Name=v1,v2", domain.ErrInvalidRequest, raw)
	}

	var sizes []string
	for _, v := range strings.Split(values, ",") {
		if v = strings.TrimSpace(v); v != "" {
			sizes = append(sizes, v)
		}
	}
	if len(sizes) == 0 {
		return domain.SizeDimensionSelection{}, fmt.Errorf("%w: dimension %q has no sizes", domain.ErrInvalidRequest, name)
	}

	return domain.SizeDimensionSelection{
		DimensionID:    strings.ToLower(name),
		DimensionName:  name,
		AvailableSizes: sizes,
		SelectedSizes:  sizes,
	}, nil
}
