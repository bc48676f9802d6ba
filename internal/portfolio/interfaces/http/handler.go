// Package http serves building and unit endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"meterdesk/internal/audit"
	"meterdesk/internal/auth"
	meterapp "meterdesk/internal/metering/application"
	metering "meterdesk/internal/metering/domain"
	portfolioapp "meterdesk/internal/portfolio/application"
	portfolio "meterdesk/internal/portfolio/domain"
)

// Handler serves portfolio endpoints.
type Handler struct {
	service     *portfolioapp.Service
	meters      *meterapp.MeterService
	orgChecker  auth.BuildingOrgChecker
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *portfolioapp.Service, meters *meterapp.MeterService, orgChecker auth.BuildingOrgChecker, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if service == nil || meters == nil {
		return nil, errors.New("portfolio handler: nil dependency")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, meters: meters, orgChecker: orgChecker, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP routes portfolio requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/buildings":
		switch r.Method {
		case http.MethodGet:
			h.handleListBuildings(w, r)
		case http.MethodPost:
			h.handleCreateBuilding(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/buildings/"):
		h.routeBuilding(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/units/"):
		h.routeUnit(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) routeBuilding(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/buildings/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	buildingID := parts[0]
	if err := h.ensureOrg(r, buildingID); err != nil {
		respondOrgError(w, err)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGetBuilding(w, r, buildingID)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleDeleteBuilding(w, r, buildingID)
	case len(parts) == 2 && parts[1] == "units" && r.Method == http.MethodGet:
		h.handleListUnits(w, r, buildingID)
	case len(parts) == 2 && parts[1] == "units" && r.Method == http.MethodPost:
		h.handleCreateUnit(w, r, buildingID)
	case len(parts) == 2 && parts[1] == "meters" && r.Method == http.MethodGet:
		h.handleListMeters(w, r, h.meters.ListByBuilding, buildingID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) routeUnit(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/units/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	unitID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGetUnit(w, r, unitID)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleDeleteUnit(w, r, unitID)
	case len(parts) == 2 && parts[1] == "meters" && r.Method == http.MethodGet:
		h.handleListMeters(w, r, h.meters.ListByUnit, unitID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleCreateBuilding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		Address    string `json:"address"`
		City       string `json:"city"`
		PostalCode string `json:"postal_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		http.Error(w, "missing organization", http.StatusBadRequest)
		return
	}
	building, err := h.service.CreateBuilding(r.Context(), &portfolio.Building{
		OrgID:      orgID,
		Name:       req.Name,
		Address:    req.Address,
		City:       req.City,
		PostalCode: req.PostalCode,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(building)
}

func (h *Handler) handleListBuildings(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		orgID = r.URL.Query().Get("org_id")
	}
	if orgID == "" {
		http.Error(w, "missing organization", http.StatusBadRequest)
		return
	}
	buildings, err := h.service.ListBuildings(r.Context(), orgID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"buildings": buildings})
}

func (h *Handler) handleGetBuilding(w http.ResponseWriter, r *http.Request, id string) {
	building, err := h.service.GetBuilding(r.Context(), id)
	if err != nil {
		respondPortfolioError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(building)
}

func (h *Handler) handleDeleteBuilding(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.DeleteBuilding(r.Context(), id); err != nil {
		respondPortfolioError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, "building", id, audit.ActionBuildingDelete)
}

func (h *Handler) handleCreateUnit(w http.ResponseWriter, r *http.Request, buildingID string) {
	var req struct {
		Number string   `json:"number"`
		Floor  *int     `json:"floor"`
		Area   *float64 `json:"area"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	unit, err := h.service.CreateUnit(r.Context(), &portfolio.Unit{
		BuildingID: buildingID,
		Number:     req.Number,
		Floor:      req.Floor,
		Area:       req.Area,
	})
	if err != nil {
		respondPortfolioError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(unit)
}

func (h *Handler) handleListUnits(w http.ResponseWriter, r *http.Request, buildingID string) {
	units, err := h.service.ListUnits(r.Context(), buildingID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"units": units})
}

func (h *Handler) handleGetUnit(w http.ResponseWriter, r *http.Request, id string) {
	unit, err := h.service.GetUnit(r.Context(), id)
	if err != nil {
		respondPortfolioError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(unit)
}

func (h *Handler) handleDeleteUnit(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.DeleteUnit(r.Context(), id); err != nil {
		respondPortfolioError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, "unit", id, audit.ActionUnitDelete)
}

func (h *Handler) handleListMeters(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, ownerID string) ([]metering.Meter, error), ownerID string) {
	meters, err := list(r.Context(), ownerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"meters": meters})
}

func (h *Handler) ensureOrg(r *http.Request, buildingID string) error {
	orgID := auth.OrgIDFromContext(r.Context())
	if h.orgChecker == nil || orgID == "" {
		return nil
	}
	return h.orgChecker.EnsureBuildingOrg(r.Context(), orgID, buildingID)
}

func (h *Handler) logAudit(r *http.Request, resourceType, resourceID, action string) {
	if h.auditLogger == nil {
		return
	}
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		return
	}
	entry := audit.Entry{
		OrgID:        orgID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
	entry.CaptureRequest(r)
	_ = h.auditLogger.Log(r.Context(), entry)
}

func respondOrgError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, auth.ErrOrgMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, auth.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "organization check failed", http.StatusInternalServerError)
}

func respondPortfolioError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, portfolio.ErrBuildingNotFound):
		http.Error(w, "building not found", http.StatusNotFound)
	case errors.Is(err, portfolio.ErrUnitNotFound):
		http.Error(w, "unit not found", http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
