package domain

import "time"

// ImageInput is one attached product photo. Ref identifies the image (URL,
// file path, data URI or an opaque upload ID); Data carries the bytes when the
// caller already has them.
type ImageInput struct {
	Ref  string `json:"ref"`
	Data []byte `json:"data,omitempty"`
}

// ColorSample is the dominant colour estimate for one image
type ColorSample struct {
	ImageRef         string `json:"imageRef"`
	RGBHex           string `json:"rgbHex"`
	NearestColorName string `json:"nearestColorName"`
	Fallback         bool   `json:"fallback,omitempty"`
}

// Mode selects which source wins when both produced a value
type Mode string

const (
	ModeRules  Mode = "rules"
	ModeAI     Mode = "ai"
	ModeAssist Mode = "assist"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m == ModeRules || m == ModeAI || m == ModeAssist
}

// AnalysisFlags are the caller switches accepted at the analysis boundary
type AnalysisFlags struct {
	ForceExternal bool   `json:"forceExternal,omitempty"`
	Strict        bool   `json:"strict,omitempty"`
	ExternalOnly  bool   `json:"externalOnly,omitempty"`
	RulesOnly     bool   `json:"rulesOnly,omitempty"`
	Provider      string `json:"provider,omitempty"`
}

// Mode derives the merge mode from the flags, returning fallback when
// neither RulesOnly nor ExternalOnly is set
func (f AnalysisFlags) Mode(fallback Mode) Mode {
	switch {
	case f.RulesOnly:
		return ModeRules
	case f.ExternalOnly:
		return ModeAI
	default:
		return fallback
	}
}

// ExtractionRequest is the payload sent to an external provider
type ExtractionRequest struct {
	Text      string        `json:"text"`
	RawText   string        `json:"rawText,omitempty"`
	Images    []ImageInput  `json:"images,omitempty"`
	Flags     AnalysisFlags `json:"flags"`
	InputHash string        `json:"inputHash,omitempty"`
}

// FieldDecision records which source won a field during merge and why
type FieldDecision struct {
	Field      string  `json:"field"`
	Winner     Source  `json:"winner,omitempty"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ProductDraft is the merged, provenance-carrying product record under review
type ProductDraft struct {
	ExtractionResult

	ID            string            `json:"id"`
	Version       int               `json:"version"`
	Mode          Mode              `json:"mode"`
	ColorSamples  []ColorSample     `json:"colorSamples,omitempty"`
	ColorImageMap map[string]string `json:"colorImageMap,omitempty"`
	Decisions     []FieldDecision   `json:"decisions,omitempty"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// DraftSession is the versioned state behind one draft across async passes
type DraftSession struct {
	ID             string            `json:"id"`
	Version        int               `json:"version"`
	RawText        string            `json:"rawText"`
	NormalizedText string            `json:"normalizedText"`
	InputHash      string            `json:"inputHash"`
	Images         []ImageInput      `json:"images,omitempty"`
	Flags          AnalysisFlags     `json:"flags"`
	Rules          *ExtractionResult `json:"rules,omitempty"`
	External       *ExtractionResult `json:"external,omitempty"`
	ColorSamples   []ColorSample     `json:"colorSamples,omitempty"`
	Draft          *ProductDraft     `json:"draft,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}
