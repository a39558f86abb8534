package usecase

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/draftlens/backend/internal/domain"
)

// Fallback sample reported when an image cannot be loaded or decoded
const (
	FallbackColorHex  = "#808080"
	FallbackColorName = "Gray"
)

// Sampler defaults
const (
	defaultSampleSize     = 64
	defaultMaxConcurrency = 4
)

// namedColor is one entry of the reference palette
type namedColor struct {
	name    string
	r, g, b uint8
}

// namedColors is the fixed palette used for nearest-colour lookup.
// Names are the colour families of the bilingual lexicon.
var namedColors = []namedColor{
	{"Black", 0, 0, 0},
	{"White", 255, 255, 255},
	{"Gray", 128, 128, 128},
	{"Silver", 192, 192, 192},
	{"Red", 255, 0, 0},
	{"Maroon", 128, 0, 0},
	{"Orange", 255, 165, 0},
	{"Yellow", 255, 255, 0},
	{"Gold", 255, 215, 0},
	{"Olive", 128, 128, 0},
	{"Green", 0, 128, 0},
	{"Teal", 0, 128, 128},
	{"Turquoise", 64, 224, 208},
	{"Sky Blue", 135, 206, 235},
	{"Blue", 0, 0, 255},
	{"Navy", 0, 0, 128},
	{"Purple", 128, 0, 128},
	{"Pink", 255, 192, 203},
	{"Brown", 139, 69, 19},
	{"Beige", 245, 245, 220},
	{"Cream", 255, 253, 208},
	{"Khaki", 240, 230, 140},
}

// ColorSamplerConfig holds configuration for the colour sampler
type ColorSamplerConfig struct {
	SampleSize     int
	MaxConcurrency int
}

// ColorSampler estimates the dominant colour of product photos
type ColorSampler struct {
	loader         domain.ImageLoader
	sampleSize     int
	maxConcurrency int
	logger         zerolog.Logger
}

// NewColorSampler creates a sampler. loader may be nil when callers always
// pass image bytes.
func NewColorSampler(loader domain.ImageLoader, config ColorSamplerConfig, logger zerolog.Logger) *ColorSampler {
	size := config.SampleSize
	if size <= 0 {
		size = defaultSampleSize
	}
	workers := config.MaxConcurrency
	if workers <= 0 {
		workers = defaultMaxConcurrency
	}
	return &ColorSampler{
		loader:         loader,
		sampleSize:     size,
		maxConcurrency: workers,
		logger:         logger,
	}
}

// SampleAll samples each distinct image reference once. Results follow the
// order in which references first appear, not completion order.
func (s *ColorSampler) SampleAll(ctx context.Context, images []domain.ImageInput) []domain.ColorSample {
	unique := dedupeImages(images)
	if len(unique) == 0 {
		return nil
	}

	results := make([]domain.ColorSample, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)

	for i, img := range unique {
		g.Go(func() error {
			results[i] = s.sampleInput(gctx, img)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Sample decodes one encoded image and returns its dominant colour.
// Any decode failure yields the gray fallback sample.
func (s *ColorSampler) Sample(ref string, data []byte) domain.ColorSample {
	sample, err := s.sampleBytes(ref, data)
	if err != nil {
		s.logger.Warn().Err(err).Str("image", ref).Msg("colour sampling fell back to gray")
		return FallbackSample(ref)
	}
	return sample
}

// FallbackSample is the neutral sample used for unreadable images
func FallbackSample(ref string) domain.ColorSample {
	return domain.ColorSample{
		ImageRef:         ref,
		RGBHex:           FallbackColorHex,
		NearestColorName: FallbackColorName,
		Fallback:         true,
	}
}

func (s *ColorSampler) sampleInput(ctx context.Context, img domain.ImageInput) domain.ColorSample {
	data := img.Data
	if len(data) == 0 && img.Ref != "" && s.loader != nil {
		if ctx.Err() != nil {
			return FallbackSample(img.Ref)
		}
		loaded, err := s.loader.Load(ctx, img)
		if err != nil {
			s.logger.Warn().Err(err).Str("image", img.Ref).Msg("image load failed")
			return FallbackSample(img.Ref)
		}
		data = loaded
	}
	return s.Sample(img.Ref, data)
}

func (s *ColorSampler) sampleBytes(ref string, data []byte) (domain.ColorSample, error) {
	if len(data) == 0 {
		return domain.ColorSample{}, fmt.Errorf("%w: empty buffer", domain.ErrImageDecode)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.ColorSample{}, fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
	}
	if src.Bounds().Empty() {
		return domain.ColorSample{}, fmt.Errorf("%w: zero-sized image", domain.ErrImageDecode)
	}

	// Downsample into a fixed square raster before averaging
	dst := image.NewRGBA(image.Rect(0, 0, s.sampleSize, s.sampleSize))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	r, g, b, ok := meanOpaqueColor(dst)
	if !ok {
		return domain.ColorSample{}, fmt.Errorf("%w: fully transparent image", domain.ErrImageDecode)
	}

	return domain.ColorSample{
		ImageRef:         ref,
		RGBHex:           fmt.Sprintf("#%02X%02X%02X", r, g, b),
		NearestColorName: NearestColorName(r, g, b),
	}, nil
}

// meanOpaqueColor averages the un-premultiplied colour of non-transparent pixels
func meanOpaqueColor(img *image.RGBA) (uint8, uint8, uint8, bool) {
	var sumR, sumG, sumB, count float64
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := img.RGBAAt(x, y)
			if px.A == 0 {
				continue
			}
			scale := 255.0 / float64(px.A)
			sumR += float64(px.R) * scale
			sumG += float64(px.G) * scale
			sumB += float64(px.B) * scale
			count++
		}
	}
	if count == 0 {
		return 0, 0, 0, false
	}
	return channel(sumR / count), channel(sumG / count), channel(sumB / count), true
}

func channel(v float64) uint8 {
	return uint8(math.Min(255, math.Max(0, math.Round(v))))
}

// NearestColorName returns the palette entry with the smallest Euclidean RGB distance
func NearestColorName(r, g, b uint8) string {
	best := namedColors[0].name
	bestDist := math.MaxFloat64
	for _, c := range namedColors {
		dr := float64(r) - float64(c.r)
		dg := float64(g) - float64(c.g)
		db := float64(b) - float64(c.b)
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			bestDist = d
			best = c.name
		}
	}
	return best
}

// dedupeImages drops repeated references, keeping first appearance.
// Inputs without a reference are always kept.
func dedupeImages(images []domain.ImageInput) []domain.ImageInput {
	seen := make(map[string]bool, len(images))
	out := make([]domain.ImageInput, 0, len(images))
	for _, img := range images {
		if img.Ref != "" {
			if seen[img.Ref] {
				continue
			}
			seen[img.Ref] = true
		}
		out = append(out, img)
	}
	return out
}
