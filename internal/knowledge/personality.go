package knowledge

import (
	"fmt"
	"maps"
	"sort"
)

// Strategy is a personality scoring strategy: a pure function from entry
// attributes to a multiplicative factor. Each personality variant is its
// own strategy so it can be unit-tested in isolation.
type Strategy interface {
	Name() string
	Factor(e *Entry) float64
}

// TableParams describes a table-driven strategy. Zero-valued fields are
// neutral: unlisted content types multiply by 1.0, and a zero word limit
// disables that band.
type TableParams struct {
	ContentTypeWeights map[string]float64
	ShortWordLimit     int
	ShortWeight        float64
	LongWordLimit      int
	LongWeight         float64
}

// tableStrategy evaluates a TableParams table.
type tableStrategy struct {
	name   string
	params TableParams
}

// NewTableStrategy builds a Strategy from a parameter table. This is how
// config-defined personalities enter the registry.
func NewTableStrategy(name string, params TableParams) Strategy {
	p := params
	p.ContentTypeWeights = maps.Clone(params.ContentTypeWeights)
	return &tableStrategy{name: name, params: p}
}

func (t *tableStrategy) Name() string { return t.name }

func (t *tableStrategy) Factor(e *Entry) float64 {
	f := 1.0
	if w, ok := t.params.ContentTypeWeights[e.ContentType]; ok {
		f *= w
	}
	switch {
	case t.params.ShortWordLimit > 0 && e.WordCount <= t.params.ShortWordLimit:
		if t.params.ShortWeight > 0 {
			f *= t.params.ShortWeight
		}
	case t.params.LongWordLimit > 0 && e.WordCount >= t.params.LongWordLimit:
		if t.params.LongWeight > 0 {
			f *= t.params.LongWeight
		}
	}
	return f
}

// Registry maps personality ids to scoring strategies. The valid id set is
// configuration: built-ins are always present, and config-defined tables
// may extend or override them at startup. Registry is read-only after
// construction and safe for concurrent use.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates a registry with the built-in personalities.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	for _, s := range builtinStrategies() {
		r.strategies[s.Name()] = s
	}
	return r
}

// Register adds or replaces a strategy. Call during startup wiring only.
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get looks up a strategy by personality id.
func (r *Registry) Get(id string) (Strategy, error) {
	s, ok := r.strategies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPersonality, id)
	}
	return s, nil
}

// Names returns the registered personality ids, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// builtinStrategies are the personalities shipped with the system.
//
//   - syntaxprime: the default conversational profile. Leans into
//     conversation-origin content and short, quotable entries.
//   - precision: technical profile. Prefers structured content (code,
//     markdown) and penalizes thin entries harder.
//   - muse: creative profile. Prefers notes and longer-form writing.
func builtinStrategies() []Strategy {
	return []Strategy{
		NewTableStrategy("syntaxprime", TableParams{
			ContentTypeWeights: map[string]float64{
				"conversation": 1.3,
				"markdown":     1.05,
			},
			ShortWordLimit: 500,
			ShortWeight:    1.15,
			LongWordLimit:  5000,
			LongWeight:     0.9,
		}),
		NewTableStrategy("precision", TableParams{
			ContentTypeWeights: map[string]float64{
				"code":         1.25,
				"markdown":     1.15,
				"conversation": 0.9,
			},
			ShortWordLimit: 150,
			ShortWeight:    0.85,
		}),
		NewTableStrategy("muse", TableParams{
			ContentTypeWeights: map[string]float64{
				"text":     1.15,
				"markdown": 1.1,
				"code":     0.85,
			},
			LongWordLimit: 800,
			LongWeight:    1.1,
		}),
	}
}
