// Package effects holds the static catalog of visual effects users can
// request. The catalog is built once at startup and never mutated, so it
// needs no locking.
package effects

import (
	"strings"

	"effectlab/internal/domain"
)

// Descriptor describes one effect, including the directive sent to the
// generative transformer. The directive is internal; external consumers only
// ever see the View.
type Descriptor struct {
	ID          string
	DisplayName string
	Description string
	Directive   string
	// IntensityHint optionally modulates the directive ("subtle", "strong").
	IntensityHint string
}

// View is the public projection of a Descriptor with the directive withheld.
type View struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// Registry resolves effect identifiers to descriptors.
type Registry struct {
	byID  map[string]Descriptor
	order []string
}

// NewRegistry builds the built-in catalog.
func NewRegistry() *Registry {
	catalog := []Descriptor{
		{
			ID:          "vintage_filter",
			DisplayName: "Vintage",
			Description: "Faded colors, warm tones and a touch of film softness.",
			Directive:   "Restyle this photo as a faded 1970s film photograph: warm muted colors, slight grain, soft vignette. Keep the subject and composition unchanged.",
		},
		{
			ID:            "noir",
			DisplayName:   "Film Noir",
			Description:   "High-contrast black and white with deep shadows.",
			Directive:     "Convert this photo into a dramatic black-and-white film noir still with deep shadows and strong contrast. Keep the subject and composition unchanged.",
			IntensityHint: "strong",
		},
		{
			ID:          "vivid_pop",
			DisplayName: "Vivid Pop",
			Description: "Punchy saturated colors and crisp detail.",
			Directive:   "Boost this photo with vivid, saturated pop-art colors and crisp sharp detail. Keep the subject and composition unchanged.",
		},
		{
			ID:            "golden_hour",
			DisplayName:   "Golden Hour",
			Description:   "Soft warm sunset light.",
			Directive:     "Relight this photo as if taken during golden hour: soft warm sunlight, gentle glow, long shadows. Keep the subject and composition unchanged.",
			IntensityHint: "subtle",
		},
		{
			ID:          "cyberpunk_glow",
			DisplayName: "Cyberpunk Glow",
			Description: "Neon tones and a futuristic edge.",
			Directive:   "Restyle this photo with a cyberpunk look: neon magenta and cyan accents, moody contrast, futuristic atmosphere. Keep the subject and composition unchanged.",
		},
		{
			ID:            "dreamy_soft",
			DisplayName:   "Dreamy Soft Focus",
			Description:   "Hazy, ethereal soft-focus look.",
			Directive:     "Give this photo a dreamy, ethereal soft-focus treatment with a light haze and pastel tones. Keep the subject and composition unchanged.",
			IntensityHint: "subtle",
		},
	}

	r := &Registry{byID: make(map[string]Descriptor, len(catalog))}
	for _, d := range catalog {
		r.byID[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	return r
}

// Resolve returns the descriptor for id, or domain.ErrUnknownEffect.
func (r *Registry) Resolve(id string) (Descriptor, error) {
	d, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return Descriptor{}, domain.ErrUnknownEffect
	}
	return d, nil
}

// List returns the public catalog in registration order.
func (r *Registry) List() []View {
	out := make([]View, 0, len(r.order))
	for _, id := range r.order {
		d := r.byID[id]
		out = append(out, View{ID: d.ID, DisplayName: d.DisplayName, Description: d.Description})
	}
	return out
}

// Prompt returns the full directive text, folding in the intensity hint.
func (d Descriptor) Prompt() string {
	if d.IntensityHint == "" {
		return d.Directive
	}
	return d.Directive + " Apply the effect with " + d.IntensityHint + " intensity."
}
