// Package http serves the meter and reading endpoints.
package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"meterdesk/internal/audit"
	"meterdesk/internal/auth"
	meterapp "meterdesk/internal/metering/application"
	metering "meterdesk/internal/metering/domain"
)

const dateLayout = "2006-01-02"

// Handler serves meter CRUD, reading ingestion and history endpoints.
type Handler struct {
	meters      *meterapp.MeterService
	importer    *meterapp.ImportService
	normalizer  *meterapp.Normalizer
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewHandler constructs a Handler.
func NewHandler(meters *meterapp.MeterService, importer *meterapp.ImportService, normalizer *meterapp.Normalizer, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if meters == nil || importer == nil || normalizer == nil {
		return nil, errors.New("metering handler: nil dependency")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{meters: meters, importer: importer, normalizer: normalizer, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP routes meter requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/meters" {
		if r.Method == http.MethodPost {
			h.handleCreate(w, r)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !strings.HasPrefix(r.URL.Path, "/api/v1/meters/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/meters/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	meterID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGet(w, r, meterID)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleDelete(w, r, meterID)
	case len(parts) == 2 && parts[1] == "readings" && r.Method == http.MethodGet:
		h.handleHistory(w, r, meterID)
	case len(parts) == 2 && parts[1] == "readings" && r.Method == http.MethodPost:
		h.handleIngest(w, r, meterID)
	case len(parts) == 2 && parts[1] == "lineage" && r.Method == http.MethodGet:
		h.handleLineage(w, r, meterID)
	case len(parts) == 2 && parts[1] == "import" && r.Method == http.MethodPost:
		h.handleImport(w, r, meterID)
	case len(parts) == 2 && strings.HasPrefix(parts[1], "export.") && r.Method == http.MethodGet:
		h.handleExport(w, r, meterID, strings.TrimPrefix(parts[1], "export."))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type meterPayload struct {
	ID               string  `json:"id"`
	UnitID           string  `json:"unit_id,omitempty"`
	BuildingID       string  `json:"building_id,omitempty"`
	Number           string  `json:"number"`
	Kind             string  `json:"kind"`
	Unit             string  `json:"unit"`
	InstallationDate *string `json:"installation_date,omitempty"`
	ReplacedBy       string  `json:"replaced_by,omitempty"`
	Retired          bool    `json:"retired"`
}

func meterToPayload(m *metering.Meter) meterPayload {
	payload := meterPayload{
		ID:         m.ID,
		UnitID:     m.UnitID,
		BuildingID: m.BuildingID,
		Number:     m.Number,
		Kind:       string(m.Kind),
		Unit:       m.Kind.Unit(),
		ReplacedBy: m.ReplacedBy,
		Retired:    m.IsRetired(),
	}
	if m.InstallationDate != nil {
		formatted := m.InstallationDate.Format(dateLayout)
		payload.InstallationDate = &formatted
	}
	return payload
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UnitID           string `json:"unit_id"`
		BuildingID       string `json:"building_id"`
		Number           string `json:"number"`
		Kind             string `json:"kind"`
		InstallationDate string `json:"installation_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	meter := &metering.Meter{
		UnitID:     req.UnitID,
		BuildingID: req.BuildingID,
		Number:     req.Number,
		Kind:       metering.MeterKind(req.Kind),
	}
	if req.InstallationDate != "" {
		installed, err := time.Parse(dateLayout, req.InstallationDate)
		if err != nil {
			http.Error(w, "installation_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		utc := installed.UTC()
		meter.InstallationDate = &utc
	}
	created, err := h.meters.Create(r.Context(), meter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(meterToPayload(created))
	h.logAudit(r, created.ID, audit.ActionMeterCreate, map[string]any{"number": created.Number, "kind": created.Kind})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, meterID string) {
	meter, err := h.meters.Get(r.Context(), meterID)
	if err != nil {
		respondMeterError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(meterToPayload(meter))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, meterID string) {
	if err := h.meters.Delete(r.Context(), meterID); err != nil {
		respondMeterError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, meterID, audit.ActionMeterDelete, nil)
}

func (h *Handler) handleLineage(w http.ResponseWriter, r *http.Request, meterID string) {
	chain, err := h.meters.Lineage(r.Context(), meterID)
	if err != nil {
		respondMeterError(w, err)
		return
	}
	payload := make([]meterPayload, 0, len(chain))
	for i := range chain {
		payload = append(payload, meterToPayload(&chain[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"meters": payload})
}

type readingPayload struct {
	MeterID    string  `json:"meter_id"`
	Date       string  `json:"date"`
	Value      float64 `json:"value"`
	Source     string  `json:"source"`
	Confidence *int    `json:"confidence,omitempty"`
	ImageURL   string  `json:"image_url,omitempty"`
}

type consumptionPayload struct {
	Reading     readingPayload `json:"reading"`
	Consumption *float64       `json:"consumption,omitempty"`
	Display     bool           `json:"display_consumption"`
}

func readingToPayload(r metering.Reading) readingPayload {
	return readingPayload{
		MeterID:    r.MeterID,
		Date:       r.Date.Format(dateLayout),
		Value:      r.Value,
		Source:     string(r.Source),
		Confidence: r.Confidence,
		ImageURL:   r.ImageURL,
	}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request, meterID string) {
	lineage := r.URL.Query().Get("lineage") == "true"
	entries, err := h.meters.History(r.Context(), meterID, lineage)
	if err != nil {
		respondMeterError(w, err)
		return
	}
	payload := make([]consumptionPayload, 0, len(entries))
	for _, entry := range entries {
		item := consumptionPayload{Reading: readingToPayload(entry.Reading), Display: entry.Display()}
		if entry.HasDelta {
			delta := entry.Delta
			item.Consumption = &delta
		}
		payload = append(payload, item)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"readings": payload})
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request, meterID string) {
	var req struct {
		Value      string   `json:"value"`
		OCRValue   *float64 `json:"ocr_value"`
		Date       string   `json:"date"`
		Confidence *int     `json:"confidence"`
		ImageURL   string   `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var date *time.Time
	if req.Date != "" {
		parsed, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		utc := parsed.UTC()
		date = &utc
	}

	var reading metering.Reading
	var err error
	if req.OCRValue != nil {
		confidence := 0
		if req.Confidence != nil {
			confidence = *req.Confidence
		}
		reading, err = h.normalizer.FromPhoto(meterID, *req.OCRValue, confidence, date, req.ImageURL)
	} else {
		reading, err = h.normalizer.Manual(meterID, req.Value, date)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	overwritten, err := h.importer.IngestOne(r.Context(), reading)
	if err != nil {
		respondMeterError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"reading":     readingToPayload(reading),
		"overwritten": overwritten,
	})
	h.logAudit(r, meterID, audit.ActionReadingIngest, map[string]any{
		"date":        reading.Date.Format(dateLayout),
		"source":      reading.Source,
		"overwritten": overwritten,
	})
}

func (h *Handler) logAudit(r *http.Request, meterID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		return
	}
	payload, _ := json.Marshal(meta)
	entry := audit.Entry{
		OrgID:        orgID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "meter",
		ResourceID:   meterID,
		MeterID:      meterID,
		Metadata:     payload,
	}
	entry.CaptureRequest(r)
	_ = h.auditLogger.Log(r.Context(), entry)
}

func respondMeterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, metering.ErrMeterNotFound):
		http.Error(w, "meter not found", http.StatusNotFound)
	case errors.Is(err, metering.ErrLineageCycle):
		http.Error(w, "lineage cycle detected", http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
