package routing

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/hyperjump/zantara/internal/models"
	"gopkg.in/yaml.v3"
)

// CollectionID names a vector collection registered in a Table.
type CollectionID string

func (c CollectionID) String() string { return string(c) }

// Weights controls how much a single matched term contributes to a score.
type Weights struct {
	Keyword         float64 `yaml:"keyword"`
	HighSpecificity float64 `yaml:"high_specificity"`
	Modifier        float64 `yaml:"modifier"`
}

// DefaultWeights returns the stock weights: plain keywords and modifiers count
// once, regulation-code style terms count three times.
func DefaultWeights() Weights {
	return Weights{Keyword: 1, HighSpecificity: 3, Modifier: 1}
}

// ApplyDefaults fills zero weights.
func (w *Weights) ApplyDefaults() {
	d := DefaultWeights()
	if w.Keyword <= 0 {
		w.Keyword = d.Keyword
	}
	if w.HighSpecificity <= 0 {
		w.HighSpecificity = d.HighSpecificity
	}
	if w.Modifier <= 0 {
		w.Modifier = d.Modifier
	}
}

// Keyword is a routing term. Multi-word terms match as a contiguous token run.
// A zero Weight means "use the table default"; Specific terms default to the
// high-specificity weight.
type Keyword struct {
	Term     string  `yaml:"term" json:"term"`
	Weight   float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
	Specific bool    `yaml:"specific,omitempty" json:"specific,omitempty"`
}

// UnmarshalYAML accepts either a bare string or a {term, weight} mapping.
func (k *Keyword) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*k = Keyword{Term: node.Value}
		return nil
	}
	type plain Keyword
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*k = Keyword(p)
	return nil
}

// Domain groups keywords shared by every collection that belongs to it.
type Domain struct {
	Name     string    `yaml:"name"`
	Keywords []Keyword `yaml:"keywords"`
}

// Collection describes one routable collection.
type Collection struct {
	ID          string    `yaml:"id"`
	Domain      string    `yaml:"domain,omitempty"`
	Description string    `yaml:"description,omitempty"`
	Keywords    []Keyword `yaml:"keywords,omitempty"`
	Modifiers   []Keyword `yaml:"modifiers,omitempty"`
	Fallbacks   []string  `yaml:"fallbacks,omitempty"`
}

// Spec is the declarative form of a routing table. Collections are listed in
// registry order, which breaks ties between equal scores.
type Spec struct {
	DefaultCollection string       `yaml:"default_collection"`
	Weights           Weights      `yaml:"weights"`
	Domains           []Domain     `yaml:"domains"`
	Collections       []Collection `yaml:"collections"`
}

// LoadSpecFile reads a YAML routing table.
func LoadSpecFile(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("failed to read routing table: %w", err)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return Spec{}, fmt.Errorf("failed to parse routing table: %w", err)
	}
	return spec, nil
}

type term struct {
	text   string
	tokens []string
	weight float64
}

type entry struct {
	id          CollectionID
	domain      string
	description string
	keywords    []term
	modifiers   []term
	fallbacks   []CollectionID
}

// Table is an immutable, validated routing table. It is safe for concurrent use.
type Table struct {
	defaultID CollectionID
	weights   Weights
	order     []CollectionID
	entries   map[CollectionID]*entry
	index     map[CollectionID]int
}

// NewTable validates spec and compiles it. Every problem is reported as a
// *models.ConfigurationError.
func NewTable(spec Spec) (*Table, error) {
	if len(spec.Collections) == 0 {
		return nil, models.NewConfigurationError("routing.collections", "table has no collections")
	}

	weights := spec.Weights
	weights.ApplyDefaults()

	analyzer := NewQueryAnalyzer()

	domains := make(map[string][]term, len(spec.Domains))
	for _, d := range spec.Domains {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, models.NewConfigurationError("routing.domains", "domain with empty name")
		}
		if _, dup := domains[name]; dup {
			return nil, models.NewConfigurationError("routing.domains", "duplicate domain %q", name)
		}
		terms, err := compileTerms(analyzer, d.Keywords, weights.Keyword, weights.HighSpecificity)
		if err != nil {
			return nil, models.NewConfigurationError("routing.domains."+name, "%v", err)
		}
		domains[name] = terms
	}

	t := &Table{
		weights: weights,
		order:   make([]CollectionID, 0, len(spec.Collections)),
		entries: make(map[CollectionID]*entry, len(spec.Collections)),
		index:   make(map[CollectionID]int, len(spec.Collections)),
	}

	for i, c := range spec.Collections {
		id := CollectionID(strings.TrimSpace(c.ID))
		if id == "" {
			return nil, models.NewConfigurationError("routing.collections", "collection #%d has an empty id", i)
		}
		if _, dup := t.entries[id]; dup {
			return nil, models.NewConfigurationError("routing.collections", "duplicate collection %q", id)
		}

		e := &entry{id: id, domain: c.Domain, description: c.Description}
		if c.Domain != "" {
			shared, ok := domains[c.Domain]
			if !ok {
				return nil, models.NewConfigurationError("routing.collections."+string(id), "unknown domain %q", c.Domain)
			}
			e.keywords = append(e.keywords, shared...)
		}
		own, err := compileTerms(analyzer, c.Keywords, weights.Keyword, weights.HighSpecificity)
		if err != nil {
			return nil, models.NewConfigurationError("routing.collections."+string(id), "%v", err)
		}
		e.keywords = append(e.keywords, own...)

		e.modifiers, err = compileTerms(analyzer, c.Modifiers, weights.Modifier, weights.Modifier)
		if err != nil {
			return nil, models.NewConfigurationError("routing.collections."+string(id), "%v", err)
		}

		t.entries[id] = e
		t.index[id] = len(t.order)
		t.order = append(t.order, id)
	}

	// Fallbacks are resolved once every collection is known.
	for i, c := range spec.Collections {
		e := t.entries[t.order[i]]
		seen := make(map[CollectionID]bool, len(c.Fallbacks))
		for _, fb := range c.Fallbacks {
			fid := CollectionID(strings.TrimSpace(fb))
			if fid == e.id {
				return nil, models.NewConfigurationError("routing.collections."+string(e.id), "collection falls back to itself")
			}
			if _, ok := t.entries[fid]; !ok {
				return nil, models.NewConfigurationError("routing.collections."+string(e.id), "unknown fallback collection %q", fb)
			}
			if seen[fid] {
				continue
			}
			seen[fid] = true
			e.fallbacks = append(e.fallbacks, fid)
		}
	}

	def := CollectionID(strings.TrimSpace(spec.DefaultCollection))
	if def == "" {
		return nil, models.NewConfigurationError("routing.default_collection", "default collection is required")
	}
	if _, ok := t.entries[def]; !ok {
		return nil, models.NewConfigurationError("routing.default_collection", "default collection %q is not registered", def)
	}
	t.defaultID = def

	return t, nil
}

func compileTerms(qa *QueryAnalyzer, keywords []Keyword, base, specific float64) ([]term, error) {
	out := make([]term, 0, len(keywords))
	for _, k := range keywords {
		tokens := qa.Tokens(k.Term)
		if len(tokens) == 0 {
			return nil, fmt.Errorf("keyword %q has no matchable tokens", k.Term)
		}
		if k.Weight < 0 {
			return nil, fmt.Errorf("keyword %q has negative weight", k.Term)
		}
		w := k.Weight
		if w == 0 {
			w = base
			if k.Specific || looksLikeCode(tokens) {
				w = specific
			}
		}
		out = append(out, term{text: strings.Join(tokens, " "), tokens: tokens, weight: w})
	}
	return out, nil
}

// looksLikeCode reports whether a term carries a digit, as regulation and article
// references ("pph 21", "pp 28/2025", "e33g") do.
func looksLikeCode(tokens []string) bool {
	for _, tok := range tokens {
		for _, r := range tok {
			if unicode.IsDigit(r) {
				return true
			}
		}
	}
	return false
}

// Default returns the collection used when nothing matches.
func (t *Table) Default() CollectionID { return t.defaultID }

// Weights returns the effective weights.
func (t *Table) Weights() Weights { return t.weights }

// Collections returns every registered collection in registry order.
func (t *Table) Collections() []CollectionID {
	out := make([]CollectionID, len(t.order))
	copy(out, t.order)
	return out
}

// Has reports whether id is registered.
func (t *Table) Has(id CollectionID) bool {
	_, ok := t.entries[id]
	return ok
}

// ParseCollectionID validates a free-form collection name against the table.
func (t *Table) ParseCollectionID(name string) (CollectionID, error) {
	id := CollectionID(strings.TrimSpace(name))
	if !t.Has(id) {
		return "", fmt.Errorf("unknown collection %q", name)
	}
	return id, nil
}

// Fallbacks returns the configured fallback chain of id, nearest first.
func (t *Table) Fallbacks(id CollectionID) []CollectionID {
	e, ok := t.entries[id]
	if !ok {
		return nil
	}
	out := make([]CollectionID, len(e.fallbacks))
	copy(out, e.fallbacks)
	return out
}

// Domain returns the domain id belongs to, or "".
func (t *Table) Domain(id CollectionID) string {
	if e, ok := t.entries[id]; ok {
		return e.domain
	}
	return ""
}

// Description returns the human readable description of id.
func (t *Table) Description(id CollectionID) string {
	if e, ok := t.entries[id]; ok {
		return e.description
	}
	return ""
}

// position returns the registry index of id, or len(order) when unknown.
func (t *Table) position(id CollectionID) int {
	if i, ok := t.index[id]; ok {
		return i
	}
	return len(t.order)
}
