package transform

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"effectlab/internal/domain"
)

// filterChain is a fixed parameter set for the deterministic fallback. Each
// effect id maps to a distinct chain; the same source bytes always yield the
// same output bytes. Zero values mean "skip that step".
type filterChain struct {
	grayscale  bool
	brightness float64 // percentage, -100..100
	contrast   float64 // percentage, -100..100
	saturation float64 // percentage, -100..100
	gamma      float64 // 1.0 = neutral
	sharpen    float64 // sigma
	blur       float64 // sigma
}

var fallbackChains = map[string]filterChain{
	"vintage_filter": {brightness: 5, contrast: -10, saturation: -30, gamma: 1.1, blur: 0.4},
	"noir":           {grayscale: true, contrast: 25, gamma: 0.95, sharpen: 0.6},
	"vivid_pop":      {contrast: 15, saturation: 40, sharpen: 0.8},
	"golden_hour":    {brightness: 8, saturation: 12, gamma: 1.15},
	"cyberpunk_glow": {contrast: 20, saturation: 35, gamma: 0.9, sharpen: 1.0},
	"dreamy_soft":    {brightness: 6, saturation: -10, blur: 1.2},
}

// neutral chain for effect ids without a dedicated parameter set; keeps the
// pipeline total even if the catalog grows faster than this table.
var defaultChain = filterChain{contrast: 5, sharpen: 0.3}

// applyFallback runs the effect-keyed filter chain over the source bytes.
// Step order is fixed: grayscale, brightness, contrast, saturation, gamma,
// sharpen, blur.
func applyFallback(src []byte, effectID string) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: decode source: %v", domain.ErrInvalidImage, err)
	}

	chain, ok := fallbackChains[effectID]
	if !ok {
		chain = defaultChain
	}

	out := imaging.Clone(img)
	if chain.grayscale {
		out = imaging.Grayscale(out)
	}
	if chain.brightness != 0 {
		out = imaging.AdjustBrightness(out, chain.brightness)
	}
	if chain.contrast != 0 {
		out = imaging.AdjustContrast(out, chain.contrast)
	}
	if chain.saturation != 0 {
		out = imaging.AdjustSaturation(out, chain.saturation)
	}
	if chain.gamma != 0 && chain.gamma != 1.0 {
		out = imaging.AdjustGamma(out, chain.gamma)
	}
	if chain.sharpen > 0 {
		out = imaging.Sharpen(out, chain.sharpen)
	}
	if chain.blur > 0 {
		out = imaging.Blur(out, chain.blur)
	}
	return out, nil
}
