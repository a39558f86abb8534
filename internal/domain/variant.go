package domain

// SizeDimensionSelection is one independent size taxonomy and the operator's picks
type SizeDimensionSelection struct {
	DimensionID    string   `json:"dimensionId"`
	DimensionName  string   `json:"dimensionName"`
	AvailableSizes []string `json:"availableSizes,omitempty"`
	SelectedSizes  []string `json:"selectedSizes"`
}

// ColorSelection is one colour chosen for the variant matrix
type ColorSelection struct {
	ColorName       string   `json:"colorName"`
	LinkedImageRefs []string `json:"linkedImageRefs,omitempty"`
	IsPrimary       bool     `json:"isPrimary,omitempty"`
}

// OptionValue is a single dimension/value pair used to rebuild facets downstream
type OptionValue struct {
	Dimension string `json:"dimension"`
	Value     string `json:"value"`
}

// ColorDimension is the option dimension name used for colours
const ColorDimension = "color"

// VariantRecord is one concrete sellable variant.
// CompositeSize encodes every size dimension as "name:value|name:value".
type VariantRecord struct {
	CompositeSize string        `json:"compositeSize,omitempty"`
	Size          string        `json:"size,omitempty"`
	Color         string        `json:"color,omitempty"`
	SKU           string        `json:"sku"`
	Price         *float64      `json:"price,omitempty"`
	PurchasePrice *float64      `json:"purchasePrice,omitempty"`
	StockQuantity int           `json:"stockQuantity"`
	OptionValues  []OptionValue `json:"optionValues"`
}

// VariantRequest is the generator input assembled from a reviewed draft
type VariantRequest struct {
	Dimensions    []SizeDimensionSelection `json:"dimensions,omitempty"`
	Colors        []ColorSelection         `json:"colors,omitempty"`
	Price         *float64                 `json:"price,omitempty"`
	PurchasePrice *float64                 `json:"purchasePrice,omitempty"`
	StockQuantity int                      `json:"stockQuantity"`
	SKUSeed       string                   `json:"skuSeed"`
}
