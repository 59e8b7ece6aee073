package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andreevsm/aquadose/internal/chem"
	"github.com/andreevsm/aquadose/internal/defaults"
	"github.com/andreevsm/aquadose/internal/dosing"
	"github.com/andreevsm/aquadose/internal/fertilizer"
	"github.com/andreevsm/aquadose/internal/logger"
)

const doseEpsilon = 0.001

func loadDefaults(t *testing.T) (*chem.Catalog, *fertilizer.Catalog) {
	t.Helper()
	elements, err := chem.LoadCatalog(defaults.Elements)
	if err != nil {
		t.Fatalf("load elements: %v", err)
	}
	fertilizers := fertilizer.NewCatalog()
	if err := fertilizers.Load(defaults.Fertilizers, elements); err != nil {
		t.Fatalf("load fertilizers: %v", err)
	}
	return elements, fertilizers
}

func newTestServer(t *testing.T, reload Loader) *Server {
	t.Helper()
	elements, fertilizers := loadDefaults(t)
	return &Server{
		Store:  NewStore(elements, fertilizers),
		Reload: reload,
		Log:    logger.New(logger.LevelOff, nil),
	}
}

func deltaEq(t *testing.T, got, want float64, what string) {
	t.Helper()
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	if diff > doseEpsilon {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func TestListElements(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/elements", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var entries []struct {
		Symbol    string  `json:"symbol"`
		MolarMass float64 `json:"molar_mass"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("no elements returned")
	}
	// Display order puts nitrogen first.
	if entries[0].Symbol != "N" {
		t.Errorf("first element = %s, want N", entries[0].Symbol)
	}
}

func TestListFertilizers(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/fertilizers", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var names []string
	if err := json.Unmarshal(rec.Body.Bytes(), &names); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, name := range names {
		if name == "KNO3" {
			found = true
		}
	}
	if !found {
		t.Errorf("KNO3 missing from %v", names)
	}
}

func TestFertilizerDetail(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/fertilizers/KNO3", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var detail struct {
		Name       string  `json:"name"`
		MolarMass  float64 `json:"molar_mass"`
		Components []struct {
			Element  string  `json:"element"`
			Fraction float64 `json:"fraction"`
		} `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatal(err)
	}
	deltaEq(t, detail.MolarMass, 101.103, "molar mass")
	if len(detail.Components) < 2 || detail.Components[0].Element != "N" {
		t.Fatalf("unexpected components %+v", detail.Components)
	}
	deltaEq(t, detail.Components[0].Fraction, 0.1385, "N fraction")
}

func TestFertilizerDetailRawFormula(t *testing.T) {
	srv := newTestServer(t, nil)

	// Not a catalog entry; resolved by parsing the path as a formula.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/fertilizers/K2SO4*10H2O", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestFertilizerDetailUnknown(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/fertilizers/Ololo", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDoseDry(t *testing.T) {
	srv := newTestServer(t, nil)

	body := `{
		"tank": {"volume": 200},
		"fertilizer": "KNO3",
		"dry": {"dilute_input": 1.0, "what": "ResultOfDose"}
	}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/dose", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var res dosing.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	deltaEq(t, res.CompoundDose, 1.0, "compound dose")
	if len(res.ElementsDose) == 0 || res.ElementsDose[0].Element != "N" {
		t.Fatalf("unexpected elements %+v", res.ElementsDose)
	}
	deltaEq(t, res.ElementsDose[0].Dose, 0.815, "N dose")
}

func TestDoseSolutionTarget(t *testing.T) {
	srv := newTestServer(t, nil)

	body := `{
		"tank": {"volume": 200},
		"fertilizer": "KNO3",
		"solution": {
			"container_volume": 1000,
			"portion_volume": 100,
			"solution_input": 2.0,
			"what": "TargetDose",
			"target_element": "N"
		}
	}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/dose", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var res dosing.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	// The computed amount must yield the requested concentration back.
	deltaEq(t, res.ElementsDose[0].Dose, 2.0, "N dose")
}

func TestDoseBadRequests(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"no method", `{"tank": {"volume": 200}, "fertilizer": "KNO3"}`, http.StatusBadRequest},
		{"both methods", `{
			"tank": {"volume": 200}, "fertilizer": "KNO3",
			"dry": {"dilute_input": 1, "what": "ResultOfDose"},
			"solution": {"container_volume": 1, "portion_volume": 1, "solution_input": 1, "what": "ResultOfDose"}
		}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
		{"unknown fertilizer", `{
			"tank": {"volume": 200}, "fertilizer": "Ololo",
			"dry": {"dilute_input": 1, "what": "ResultOfDose"}
		}`, http.StatusNotFound},
		{"missing target", `{
			"tank": {"volume": 200}, "fertilizer": "KNO3",
			"dry": {"dilute_input": 1, "what": "TargetDose", "target_element": "P"}
		}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/dose", strings.NewReader(tt.body)))
			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.code, rec.Body)
			}
		})
	}
}

func TestReloadSwapsSnapshot(t *testing.T) {
	reloaded := false
	srv := newTestServer(t, nil)
	srv.Reload = func() (*chem.Catalog, *fertilizer.Catalog, error) {
		reloaded = true
		elements, err := chem.LoadCatalog(defaults.Elements)
		if err != nil {
			return nil, nil, err
		}
		fertilizers := fertilizer.NewCatalog()
		if err := fertilizers.Load([]byte("Epsom:\n  formula: MgSO4*7H2O\n"), elements); err != nil {
			return nil, nil, err
		}
		return elements, fertilizers, nil
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reload", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !reloaded {
		t.Fatal("loader was not called")
	}
	_, fertilizers := srv.Store.Snapshot()
	if fertilizers.Len() != 1 {
		t.Errorf("snapshot not swapped, %d fertilizers", fertilizers.Len())
	}
}

func TestReloadFailureKeepsSnapshot(t *testing.T) {
	srv := newTestServer(t, func() (*chem.Catalog, *fertilizer.Catalog, error) {
		return nil, nil, errors.New("sources unavailable")
	})
	_, before := srv.Store.Snapshot()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reload", nil))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	_, after := srv.Store.Snapshot()
	if after != before {
		t.Error("snapshot replaced on failed reload")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/elements", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dose", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
