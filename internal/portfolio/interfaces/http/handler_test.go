package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"meterdesk/internal/auth"
	meterapp "meterdesk/internal/metering/application"
	metering "meterdesk/internal/metering/domain"
	metermem "meterdesk/internal/metering/infrastructure/memory"
	portfolioapp "meterdesk/internal/portfolio/application"
	portfolio "meterdesk/internal/portfolio/domain"
)

type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

type mapBuildingRepo struct {
	mu   sync.Mutex
	data map[string]*portfolio.Building
}

func newMapBuildingRepo() *mapBuildingRepo {
	return &mapBuildingRepo{data: make(map[string]*portfolio.Building)}
}

func (r *mapBuildingRepo) Create(ctx context.Context, b *portfolio.Building) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.data[b.ID] = &cp
	return nil
}

func (r *mapBuildingRepo) Get(ctx context.Context, id string) (*portfolio.Building, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *mapBuildingRepo) ListByOrg(ctx context.Context, orgID string) ([]portfolio.Building, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []portfolio.Building
	for _, b := range r.data {
		if b.OrgID == orgID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *mapBuildingRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return portfolio.ErrBuildingNotFound
	}
	delete(r.data, id)
	return nil
}

type mapUnitRepo struct {
	mu   sync.Mutex
	data map[string]*portfolio.Unit
}

func newMapUnitRepo() *mapUnitRepo {
	return &mapUnitRepo{data: make(map[string]*portfolio.Unit)}
}

func (r *mapUnitRepo) Create(ctx context.Context, u *portfolio.Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.data[u.ID] = &cp
	return nil
}

func (r *mapUnitRepo) Get(ctx context.Context, id string) (*portfolio.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *mapUnitRepo) ListByBuilding(ctx context.Context, buildingID string) ([]portfolio.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []portfolio.Unit
	for _, u := range r.data {
		if u.BuildingID == buildingID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *mapUnitRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return portfolio.ErrUnitNotFound
	}
	delete(r.data, id)
	return nil
}

// orgGate enforces org membership against an in-memory building repo.
type orgGate struct{ buildings *mapBuildingRepo }

func (g orgGate) EnsureBuildingOrg(ctx context.Context, orgID, buildingID string) error {
	building, err := g.buildings.Get(ctx, buildingID)
	if err != nil {
		return err
	}
	if building == nil {
		return auth.ErrNotFound
	}
	if building.OrgID != orgID {
		return auth.ErrOrgMismatch
	}
	return nil
}

type portfolioFixture struct {
	handler   *Handler
	buildings *mapBuildingRepo
	meters    *metermem.MeterRepository
	service   *meterapp.MeterService
}

func newPortfolioFixture(t *testing.T) *portfolioFixture {
	t.Helper()
	buildings := newMapBuildingRepo()
	units := newMapUnitRepo()
	meterRepo := metermem.NewMeterRepository()
	readingRepo := metermem.NewReadingRepository()
	logger := log.New(testLogWriter{t}, "", 0)

	meters, err := meterapp.NewMeterService(meterRepo, readingRepo, logger)
	if err != nil {
		t.Fatalf("meter service: %v", err)
	}
	service, err := portfolioapp.NewService(buildings, units, meters, logger)
	if err != nil {
		t.Fatalf("portfolio service: %v", err)
	}
	handler, err := NewHandler(service, meters, orgGate{buildings}, nil, logger)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return &portfolioFixture{handler: handler, buildings: buildings, meters: meterRepo, service: meters}
}

func (f *portfolioFixture) do(t *testing.T, method, path, orgID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if orgID != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), orgID, auth.RoleOperator, "user-1"))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateAndListBuildings(t *testing.T) {
	f := newPortfolioFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/buildings", "org-1", map[string]any{
		"name":        "Hauptstraße 5",
		"address":     "Hauptstraße 5",
		"city":        "Berlin",
		"postal_code": "10115",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created portfolio.Building
	decode(t, rec, &created)
	if created.ID == "" || created.OrgID != "org-1" {
		t.Fatalf("unexpected building %+v", created)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/buildings", "org-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listed struct {
		Buildings []portfolio.Building `json:"buildings"`
	}
	decode(t, rec, &listed)
	if len(listed.Buildings) != 1 {
		t.Fatalf("expected 1 building, got %d", len(listed.Buildings))
	}

	rec = f.do(t, http.MethodGet, "/api/v1/buildings", "org-2", nil)
	var other struct {
		Buildings []portfolio.Building `json:"buildings"`
	}
	decode(t, rec, &other)
	if len(other.Buildings) != 0 {
		t.Fatalf("org-2 must not see org-1 buildings")
	}
}

func TestCreateBuildingWithoutOrg(t *testing.T) {
	f := newPortfolioFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/buildings", "", map[string]any{"name": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOrgMismatchIsForbidden(t *testing.T) {
	f := newPortfolioFixture(t)
	buildingID := f.createBuilding(t, "org-1", "Haus A")

	rec := f.do(t, http.MethodGet, "/api/v1/buildings/"+buildingID, "org-2", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestUnitsRequireExistingBuilding(t *testing.T) {
	f := newPortfolioFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/buildings/missing/units", "", map[string]any{"number": "WE 01"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUnitLifecycleAndMeters(t *testing.T) {
	f := newPortfolioFixture(t)
	buildingID := f.createBuilding(t, "org-1", "Haus B")

	rec := f.do(t, http.MethodPost, "/api/v1/buildings/"+buildingID+"/units", "org-1", map[string]any{
		"number": "WE 03",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var unit portfolio.Unit
	decode(t, rec, &unit)
	if unit.ID == "" || unit.BuildingID != buildingID {
		t.Fatalf("unexpected unit %+v", unit)
	}

	ctx := context.Background()
	if _, err := f.service.Create(ctx, &metering.Meter{
		UnitID: unit.ID,
		Number: "EL-1",
		Kind:   metering.KindElectricity,
	}); err != nil {
		t.Fatalf("seed meter: %v", err)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/units/"+unit.ID+"/meters", "org-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var meters struct {
		Meters []metering.Meter `json:"meters"`
	}
	decode(t, rec, &meters)
	if len(meters.Meters) != 1 || meters.Meters[0].Number != "EL-1" {
		t.Fatalf("unexpected meters %+v", meters.Meters)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/units/"+unit.ID, "org-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	remaining, err := f.meters.ListByUnit(ctx, unit.ID)
	if err != nil {
		t.Fatalf("list meters: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("unit delete must cascade meters, %d left", len(remaining))
	}
}

func TestDeleteBuildingCascadesOverHTTP(t *testing.T) {
	f := newPortfolioFixture(t)
	buildingID := f.createBuilding(t, "org-1", "Haus C")

	rec := f.do(t, http.MethodPost, "/api/v1/buildings/"+buildingID+"/units", "org-1", map[string]any{
		"number": "WE 01",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create unit: got %d", rec.Code)
	}
	var unit portfolio.Unit
	decode(t, rec, &unit)

	ctx := context.Background()
	if _, err := f.service.Create(ctx, &metering.Meter{
		BuildingID: buildingID,
		Number:     "WMZ-1",
		Kind:       metering.KindHeating,
	}); err != nil {
		t.Fatalf("seed building meter: %v", err)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/buildings/"+buildingID, "org-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/v1/units/"+unit.ID, "org-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected unit gone, got %d", rec.Code)
	}
	meters, err := f.meters.ListByBuilding(ctx, buildingID)
	if err != nil {
		t.Fatalf("list meters: %v", err)
	}
	if len(meters) != 0 {
		t.Fatalf("building delete must cascade meters, %d left", len(meters))
	}
}

func (f *portfolioFixture) createBuilding(t *testing.T, orgID, name string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/buildings", orgID, map[string]any{
		"name":    name,
		"address": name,
		"city":    "Berlin",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create building: got %d: %s", rec.Code, rec.Body.String())
	}
	var building portfolio.Building
	decode(t, rec, &building)
	return building.ID
}
