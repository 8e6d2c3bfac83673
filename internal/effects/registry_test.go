package effects

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"effectlab/internal/domain"
)

func TestResolveVintageFilter(t *testing.T) {
	r := NewRegistry()
	d, err := r.Resolve("vintage_filter")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if d.DisplayName == "" || d.Description == "" {
		t.Fatalf("descriptor metadata incomplete: %+v", d)
	}
	if d.Directive == "" {
		t.Fatalf("directive must not be empty")
	}
}

func TestResolveUnknownEffect(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Resolve("does_not_exist"); !errors.Is(err, domain.ErrUnknownEffect) {
		t.Fatalf("Resolve error = %v, want ErrUnknownEffect", err)
	}
}

func TestListWithholdsDirectives(t *testing.T) {
	r := NewRegistry()
	views := r.List()
	if len(views) == 0 {
		t.Fatalf("List returned empty catalog")
	}

	seen := make(map[string]bool)
	for _, v := range views {
		if v.ID == "" || v.DisplayName == "" {
			t.Fatalf("view incomplete: %+v", v)
		}
		if seen[v.ID] {
			t.Fatalf("duplicate effect id %q", v.ID)
		}
		seen[v.ID] = true
	}
	if !seen["vintage_filter"] {
		t.Fatalf("catalog is missing vintage_filter")
	}

	body, err := json.Marshal(views)
	if err != nil {
		t.Fatalf("marshal views: %v", err)
	}
	for _, v := range views {
		d, _ := r.Resolve(v.ID)
		if d.Directive != "" && strings.Contains(string(body), d.Directive) {
			t.Fatalf("public view leaks directive for %q", v.ID)
		}
	}
}

func TestPromptFoldsIntensityHint(t *testing.T) {
	r := NewRegistry()
	d, err := r.Resolve("noir")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if d.IntensityHint == "" {
		t.Fatalf("noir should carry an intensity hint")
	}
	if p := d.Prompt(); !strings.Contains(p, d.IntensityHint) {
		t.Fatalf("Prompt() = %q, want it to include hint %q", p, d.IntensityHint)
	}

	plain, _ := r.Resolve("vintage_filter")
	if plain.Prompt() != plain.Directive {
		t.Fatalf("Prompt without hint should equal the directive")
	}
}
