// Package workflow owns the four-stage batch lifecycle: the operator enters
// identifiers, curates image selections, runs generation and exports results.
// One Session exists per operator session; it exclusively owns the catalog,
// the selection and the result list.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thomasbroadsword/PhotoGenSeo/internal/catalog"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/metrics"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/models"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/photogen"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/selection"
)

// State is the single active workflow stage.
type State string

const (
	StateCollectingInput     State = "collecting-input"
	StateValidatingSelection State = "validating-selection"
	StateGenerating          State = "generating"
	StateResults             State = "results"
)

// SeedSelectionCount is how many load-time sources are pre-selected per
// product.
const SeedSelectionCount = 5

// ErrNoIdentifiers is returned when the operator input contains no usable
// identifiers.
var ErrNoIdentifiers = errors.New("enter at least one EAN")

// Backend is the remote collaborator performing lookup, image search and
// generation.
type Backend interface {
	catalog.BatchSearcher
	catalog.Searcher
	RunFromImages(ctx context.Context, req photogen.GenerationRequest) (*photogen.GenerationResult, error)
}

// Options tune a session. Zero values fall back to defaults.
type Options struct {
	// SeedCount is the number of initial sources pre-selected per product.
	SeedCount int
	// GenerationTimeout bounds each per-product generation call. Zero
	// disables the per-call deadline.
	GenerationTimeout time.Duration
	Metrics           *metrics.Metrics
}

// Session is the workflow controller for one operator session. All methods
// are safe for use from concurrent HTTP handlers; mutations are rejected in
// states where they are not defined.
type Session struct {
	ID        string
	CreatedAt time.Time

	backend    Backend
	metrics    *metrics.Metrics
	seedCount  int
	genTimeout time.Duration

	mu            sync.Mutex
	state         State
	catalog       *catalog.Catalog
	selection     *selection.Selection
	results       []models.ResultRow
	eligibleTotal int
}

// NewSession creates a session in the collecting-input state.
func NewSession(id string, backend Backend, opts Options) *Session {
	seed := opts.SeedCount
	if seed <= 0 {
		seed = SeedSelectionCount
	}
	return &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		backend:    backend,
		metrics:    opts.Metrics,
		seedCount:  seed,
		genTimeout: opts.GenerationTimeout,
		state:      StateCollectingInput,
		selection:  selection.New(),
	}
}

// State returns the active workflow state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Load parses the operator input, issues the batched lookup and, on success,
// replaces the catalog, seeds each eligible product's selection with its
// first sources and moves to validating-selection. On failure the previous
// catalog and state are untouched.
func (s *Session) Load(ctx context.Context, rawInput string) error {
	s.mu.Lock()
	if s.state != StateCollectingInput {
		s.mu.Unlock()
		return fmt.Errorf("cannot load products in state %q", s.state)
	}
	s.mu.Unlock()

	ids := catalog.ParseIdentifiers(rawInput)
	if len(ids) == 0 {
		return ErrNoIdentifiers
	}

	// Suspension point: the lock is not held across the backend call.
	loaded, err := catalog.Load(ctx, s.backend, ids)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = loaded
	s.selection = selection.New()
	for _, ean := range loaded.Eligible() {
		p, _ := loaded.Get(ean)
		urls := make([]string, 0, s.seedCount)
		for i, src := range p.Sources {
			if i == s.seedCount {
				break
			}
			urls = append(urls, src.ImageURL)
		}
		s.selection.Seed(ean, urls)
	}
	s.state = StateValidatingSelection
	return nil
}

// Toggle flips one selected image for a product.
func (s *Session) Toggle(ean string, item selection.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.selectable(ean); err != nil {
		return err
	}
	s.selection.Toggle(ean, item)
	return nil
}

// IsSelected reports membership of an item in a product's selection.
func (s *Session) IsSelected(ean string, item selection.Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.IsSelected(ean, item)
}

// AddUpload appends an uploaded image payload to a product's selection.
func (s *Session) AddUpload(ean, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.selectable(ean); err != nil {
		return err
	}
	if data == "" {
		return fmt.Errorf("empty upload payload")
	}
	s.selection.AddUpload(ean, data)
	return nil
}

// selectable checks that selection edits are valid right now for the product.
func (s *Session) selectable(ean string) error {
	if s.state != StateValidatingSelection {
		return fmt.Errorf("selection is not editable in state %q", s.state)
	}
	p, ok := s.catalog.Get(ean)
	if !ok {
		return fmt.Errorf("unknown product %q", ean)
	}
	if p.Error != "" {
		return fmt.Errorf("product %q failed to load", ean)
	}
	return nil
}

// SearchMore fetches another portion of candidate images for a product. The
// returned error is transient and not recorded on the product.
func (s *Session) SearchMore(ctx context.Context, ean string) ([]models.ImageSource, error) {
	s.mu.Lock()
	if s.state != StateValidatingSelection {
		s.mu.Unlock()
		return nil, fmt.Errorf("cannot search for images in state %q", s.state)
	}
	cat := s.catalog
	s.mu.Unlock()

	return cat.DiscoverMore(ctx, s.backend, ean)
}

// Generate runs the sequencer over all eligible products and moves the
// session to results. It blocks until the run completes; each finished row is
// published through the observer (which may be nil) as it lands, so callers
// can surface live progress. Per-product failures never abort the run.
func (s *Session) Generate(ctx context.Context, observer Observer) error {
	s.mu.Lock()
	if s.state != StateValidatingSelection {
		s.mu.Unlock()
		return fmt.Errorf("cannot generate in state %q", s.state)
	}

	var tasks []generationTask
	for _, ean := range s.catalog.Eligible() {
		p, _ := s.catalog.Get(ean)
		urls, uploads := s.selection.Split(ean)
		tasks = append(tasks, generationTask{
			ean:     ean,
			name:    p.Product.Name,
			urls:    urls,
			uploads: uploads,
		})
	}
	s.state = StateGenerating
	s.results = nil
	s.eligibleTotal = len(tasks)
	s.mu.Unlock()

	total := len(tasks)
	runSequence(ctx, s.backend, tasks, s.genTimeout, func(row models.ResultRow, outcome string) {
		s.mu.Lock()
		s.results = append(s.results, row)
		completed := len(s.results)
		s.mu.Unlock()

		s.metrics.IncGenerationRow(outcome)
		if observer != nil {
			observer(row, completed, total)
		}
	})

	s.mu.Lock()
	s.state = StateResults
	s.mu.Unlock()
	return nil
}

// Back performs one of the two operator back-transitions: results back to
// validating-selection (results are kept) or validating-selection back to
// collecting-input (the catalog stays cached until the next load overwrites
// it).
func (s *Session) Back(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == StateResults && to == StateValidatingSelection:
		s.state = to
	case s.state == StateValidatingSelection && to == StateCollectingInput:
		s.state = to
	default:
		return fmt.Errorf("no transition from %q to %q", s.state, to)
	}
	return nil
}

// Results returns a copy of the result rows accumulated so far.
func (s *Session) Results() []models.ResultRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ResultRow, len(s.results))
	copy(out, s.results)
	return out
}

// ProductView is one catalog entry with its current selection, for rendering.
type ProductView struct {
	EAN      string               `json:"ean"`
	Product  models.ProductRecord `json:"product"`
	Sources  []models.ImageSource `json:"sources"`
	Error    string               `json:"error,omitempty"`
	Selected []selection.Item     `json:"selected"`
}

// Progress is the live generation counter: rows completed over eligible
// products.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Snapshot is a consistent copy of the session for JSON rendering.
type Snapshot struct {
	ID        string             `json:"id"`
	State     State              `json:"state"`
	CreatedAt time.Time          `json:"created_at"`
	Products  []ProductView      `json:"products"`
	Results   []models.ResultRow `json:"results"`
	Progress  Progress           `json:"progress"`
}

// Snapshot captures the session under the lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.ID,
		State:     s.state,
		CreatedAt: s.CreatedAt,
		Results:   append([]models.ResultRow(nil), s.results...),
		Progress:  Progress{Completed: len(s.results), Total: s.eligibleTotal},
	}
	if s.catalog == nil {
		return snap
	}
	for _, ean := range s.catalog.EANs() {
		p, _ := s.catalog.Get(ean)
		snap.Products = append(snap.Products, ProductView{
			EAN:      ean,
			Product:  p.Product,
			Sources:  append([]models.ImageSource(nil), p.Sources...),
			Error:    p.Error,
			Selected: s.selection.Items(ean),
		})
	}
	return snap
}
