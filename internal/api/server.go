// Package api serves the catalogs and the dose calculator over HTTP.
// GET endpoints are read-only lookups; POST /api/v1/dose runs a
// calculation and POST /api/v1/reload rebuilds the catalogs from their
// sources. Catalogs are immutable snapshots: readers grab the current
// pair under a read lock, reload swaps in a fresh pair under the write
// lock, so in-flight requests keep computing against a consistent view.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/andreevsm/aquadose/internal/chem"
	"github.com/andreevsm/aquadose/internal/dosing"
	"github.com/andreevsm/aquadose/internal/fertilizer"
	"github.com/andreevsm/aquadose/internal/logger"
	"github.com/andreevsm/aquadose/internal/tank"
)

// Loader rebuilds both catalogs from their configured sources. The server
// calls it on reload; a failed load leaves the previous snapshot serving.
type Loader func() (*chem.Catalog, *fertilizer.Catalog, error)

// Store holds the current catalog snapshot. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	elements    *chem.Catalog
	fertilizers *fertilizer.Catalog
}

// NewStore creates a store with an initial snapshot.
func NewStore(elements *chem.Catalog, fertilizers *fertilizer.Catalog) *Store {
	return &Store{elements: elements, fertilizers: fertilizers}
}

// Snapshot returns the current catalog pair.
func (s *Store) Snapshot() (*chem.Catalog, *fertilizer.Catalog) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.elements, s.fertilizers
}

// Swap replaces the snapshot atomically.
func (s *Store) Swap(elements *chem.Catalog, fertilizers *fertilizer.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = elements
	s.fertilizers = fertilizers
}

// Server is the HTTP interface.
type Server struct {
	Store  *Store
	Reload Loader
	Log    *logger.Logger
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/elements", s.handleElements)
	mux.HandleFunc("/api/v1/fertilizers", s.handleFertilizers)
	mux.HandleFunc("/api/v1/fertilizers/", s.handleFertilizerDetail)
	mux.HandleFunc("/api/v1/dose", s.handleDose)
	mux.HandleFunc("/api/v1/reload", s.handleReload)
	return mux
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.Log.Info("serving HTTP on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

type elementEntry struct {
	Symbol        string   `json:"symbol"`
	MolarMass     float64  `json:"molar_mass"`
	Priority      uint     `json:"priority,omitempty"`
	Insignificant bool     `json:"insignificant,omitempty"`
	Aliases       []string `json:"aliases,omitempty"`
}

// handleElements lists the element catalog in display order.
func (s *Server) handleElements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	elements, _ := s.Store.Snapshot()

	entries := make([]elementEntry, 0, elements.Len())
	for _, name := range elements.Names() {
		elt, _ := elements.Get(name)
		entries = append(entries, elementEntry{
			Symbol:        elt.Name,
			MolarMass:     elt.MolarMass,
			Priority:      elt.Priority,
			Insignificant: elt.Insignificant,
			Aliases:       elt.Aliases,
		})
	}
	writeJSON(w, entries)
}

// handleFertilizers lists fertilizer names.
func (s *Server) handleFertilizers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	_, fertilizers := s.Store.Snapshot()
	writeJSON(w, fertilizers.Names())
}

type aliasEntry struct {
	Alias    string  `json:"alias"`
	Fraction float64 `json:"fraction"`
}

type componentEntry struct {
	Element  string       `json:"element"`
	Fraction float64      `json:"fraction"`
	Aliases  []aliasEntry `json:"aliases,omitempty"`
}

type fertilizerDetail struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	MolarMass   float64          `json:"molar_mass,omitempty"`
	Components  []componentEntry `json:"components"`
}

// handleFertilizerDetail returns one fertilizer's composition. The path
// segment is a catalog name first, a raw formula second, so
// /api/v1/fertilizers/MgSO4*7H2O works without a catalog entry.
func (s *Server) handleFertilizerDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	token := strings.TrimPrefix(r.URL.Path, "/api/v1/fertilizers/")
	if token == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing fertilizer name"))
		return
	}
	elements, fertilizers := s.Store.Snapshot()

	fert, err := resolveFertilizer(token, elements, fertilizers)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	comps, err := fert.Components(elements)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	detail := fertilizerDetail{
		Name:        fert.Name(),
		Description: fert.Description(),
		Components:  toComponentEntries(comps),
	}
	if compound, ok := fert.(*chem.Compound); ok {
		detail.MolarMass = compound.MolarMass()
	}
	writeJSON(w, detail)
}

func toComponentEntries(comps []chem.ElementConcentration) []componentEntry {
	entries := make([]componentEntry, 0, len(comps))
	for _, comp := range comps {
		aliases := make([]aliasEntry, 0, len(comp.Aliases))
		for _, alias := range comp.Aliases {
			aliases = append(aliases, aliasEntry{Alias: alias.Alias, Fraction: alias.Fraction})
		}
		entries = append(entries, componentEntry{
			Element:  comp.Element.Name,
			Fraction: comp.Fraction,
			Aliases:  aliases,
		})
	}
	return entries
}

// doseRequest is the POST /api/v1/dose body. Exactly one of dry or
// solution must be set; fertilizer is a catalog name or a raw formula.
type doseRequest struct {
	Tank       tank.Tank              `json:"tank"`
	Fertilizer string                 `json:"fertilizer"`
	Dry        *dosing.DryDosing      `json:"dry,omitempty"`
	Solution   *dosing.SolutionDosing `json:"solution,omitempty"`
}

func (req *doseRequest) method() (dosing.Method, error) {
	switch {
	case req.Dry != nil && req.Solution != nil:
		return nil, errors.New("both dry and solution given")
	case req.Dry != nil:
		return req.Dry, nil
	case req.Solution != nil:
		return req.Solution, nil
	default:
		return nil, errors.New("needs either dry or solution")
	}
}

// handleDose runs one dose calculation.
func (s *Server) handleDose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	var req doseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	method, err := req.method()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	elements, fertilizers := s.Store.Snapshot()

	fert, err := resolveFertilizer(req.Fertilizer, elements, fertilizers)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	res, err := method.Dilute(fert, elements, &req.Tank)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.Log.Debug("dose: %s into %s -> %.3f g", fert.Name(), req.Tank.String(), res.CompoundDose)
	writeJSON(w, res)
}

// handleReload rebuilds the catalogs from their sources and swaps them in.
// A failed load keeps the previous snapshot serving.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	if s.Reload == nil {
		writeError(w, http.StatusForbidden, errors.New("reload not configured"))
		return
	}
	elements, fertilizers, err := s.Reload()
	if err != nil {
		s.Log.Error("reload failed: %v", err)
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.Store.Swap(elements, fertilizers)
	s.Log.Info("catalogs reloaded: %d elements, %d fertilizers", elements.Len(), fertilizers.Len())
	writeJSON(w, map[string]any{
		"elements":    elements.Len(),
		"fertilizers": fertilizers.Len(),
	})
}

// resolveFertilizer looks the token up in the catalog first and falls
// back to parsing it as a raw formula.
func resolveFertilizer(token string, elements *chem.Catalog, fertilizers *fertilizer.Catalog) (fertilizer.Fertilizer, error) {
	if fert, err := fertilizers.Get(token); err == nil {
		return fert, nil
	}
	compound, err := chem.Parse(token, elements)
	if err != nil {
		return nil, fmt.Errorf("unknown fertilizer %q: %w", token, err)
	}
	return compound, nil
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
