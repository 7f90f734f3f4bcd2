package role

import (
	"errors"
	"fmt"
	"sort"

	"github.com/flor3z/invite-role-bot/internal/invite"
)

var (
	// ErrDuplicateBinding is returned when one invite code is bound to two categories
	ErrDuplicateBinding = errors.New("invite code bound to more than one role category")
	// ErrNoBindings is returned when no usable binding is configured
	ErrNoBindings = errors.New("no usable invite bindings configured")
)

// Binding associates an invite code with a role category
type Binding struct {
	Code     string
	Category Category
}

// BindingSet is the immutable set of invite bindings loaded at startup
type BindingSet struct {
	byCode map[string]Category
	list   []Binding
}

// FromTokens builds bindings from per-category invite tokens. Categories in
// the catalog without a token are returned as missing; they are never attributable.
func FromTokens(catalog *Catalog, tokens map[Category]string) ([]Binding, []Definition) {
	var bindings []Binding
	var missing []Definition

	for _, def := range catalog.List() {
		code := invite.NormalizeCode(tokens[def.Category])
		if code == "" {
			missing = append(missing, def)
			continue
		}
		bindings = append(bindings, Binding{Code: code, Category: def.Category})
	}

	return bindings, missing
}

// NewBindingSet merges binding sources into one set. A code repeated with the
// same category is collapsed; a code bound to two categories is an error.
func NewBindingSet(catalog *Catalog, sources ...[]Binding) (*BindingSet, error) {
	set := &BindingSet{byCode: make(map[string]Category)}

	for _, source := range sources {
		for _, b := range source {
			code := invite.NormalizeCode(b.Code)
			if code == "" {
				continue
			}
			if !catalog.Has(b.Category) {
				return nil, fmt.Errorf("binding %s: unknown role category %q", code, b.Category)
			}

			if existing, ok := set.byCode[code]; ok {
				if existing != b.Category {
					return nil, fmt.Errorf("%w: %s is bound to %s and %s", ErrDuplicateBinding, code, existing, b.Category)
				}
				continue
			}

			set.byCode[code] = b.Category
			set.list = append(set.list, Binding{Code: code, Category: b.Category})
		}
	}

	if len(set.list) == 0 {
		return nil, ErrNoBindings
	}

	return set, nil
}

// Lookup returns the category bound to an invite code
func (s *BindingSet) Lookup(code string) (Category, bool) {
	category, ok := s.byCode[code]
	return category, ok
}

// Len returns the number of bindings
func (s *BindingSet) Len() int {
	return len(s.list)
}

// List returns the bindings sorted by category then code
func (s *BindingSet) List() []Binding {
	out := make([]Binding, len(s.list))
	copy(out, s.list)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Code < out[j].Code
	})
	return out
}
