package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"meterdesk/internal/audit"
	"meterdesk/internal/auth"
	"meterdesk/internal/extraction/ocr"
	"meterdesk/internal/extraction/swap"
	"meterdesk/internal/extraction/tabular"
	meterapp "meterdesk/internal/metering/application"
	metering "meterdesk/internal/metering/domain"
	"meterdesk/internal/observability/metrics"
)

type importRequest struct {
	tabular.Table
	DateColumn  string `json:"date_column"`
	ValueColumn string `json:"value_column"`
	Locale      string `json:"locale"`
}

// handleImport maps and persists an already-parsed table into the meter.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request, meterID string) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	locale := tabular.NumberLocale(req.Locale)
	if locale == "" {
		locale = tabular.LocaleEuropean
	}
	rows, err := tabular.MapRows(req.Table, req.DateColumn, req.ValueColumn, locale)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tally, err := h.importer.ImportRows(r.Context(), meterID, rows)
	if err != nil {
		respondMeterError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"imported":    tally.Imported,
		"overwritten": tally.Overwritten,
		"skipped":     tally.Skipped,
		"message":     tally.String(),
	})
	h.logAudit(r, meterID, audit.ActionReadingsImport, map[string]any{
		"imported":    tally.Imported,
		"overwritten": tally.Overwritten,
		"skipped":     tally.Skipped,
	})
}

// ScanHandler serves file parsing and oracle-backed scan endpoints.
type ScanHandler struct {
	oracle      *ocr.Client
	chains      *meterapp.ChainService
	heuristic   swap.Heuristic
	maxUpload   int64
	locale      tabular.NumberLocale
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewScanHandler constructs a ScanHandler.
func NewScanHandler(oracle *ocr.Client, chains *meterapp.ChainService, heuristic swap.Heuristic, maxUpload int64, locale tabular.NumberLocale, auditLogger audit.Logger, logger *log.Logger) (*ScanHandler, error) {
	if chains == nil {
		return nil, errors.New("scan handler: nil chain service")
	}
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	if locale == "" {
		locale = tabular.LocaleEuropean
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ScanHandler{
		oracle:      oracle,
		chains:      chains,
		heuristic:   heuristic,
		maxUpload:   maxUpload,
		locale:      locale,
		auditLogger: auditLogger,
		logger:      logger,
	}, nil
}

// ServeHTTP routes parse and scan requests.
func (h *ScanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/imports/parse":
		h.handleParse(w, r)
	case "/api/v1/scan/document":
		h.handleDocument(w, r)
	case "/api/v1/scan/photo":
		h.handlePhoto(w, r)
	case "/api/v1/scan/chain-import":
		h.handleChainImport(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// handleParse turns an uploaded CSV/XLSX/PDF into a column/row table
// plus suggested column mapping. CSV and XLSX parse locally; PDF goes
// through the oracle.
func (h *ScanHandler) handleParse(w http.ResponseWriter, r *http.Request) {
	data, filename, err := h.readUpload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var table tabular.Table
	start := time.Now()
	switch strings.ToLower(path.Ext(filename)) {
	case ".csv", ".txt":
		table, err = tabular.ParseCSV(data)
	case ".xlsx", ".xls":
		table, err = tabular.ParseXLSX(data)
	case ".pdf":
		table, err = h.parsePDF(r, data)
	default:
		http.Error(w, "unsupported file type", http.StatusBadRequest)
		return
	}
	if err != nil {
		if errors.Is(err, ocr.ErrOracleUnavailable) {
			metrics.ObserveExtraction("table", metrics.ResultError, time.Since(start))
			http.Error(w, "extraction service unavailable", http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dateColumn, valueColumn := tabular.SuggestColumns(table.Columns)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"columns":      table.Columns,
		"data":         table.Rows,
		"date_column":  dateColumn,
		"value_column": valueColumn,
		"locale":       h.locale,
	})
}

func (h *ScanHandler) parsePDF(r *http.Request, data []byte) (tabular.Table, error) {
	if h.oracle == nil {
		return tabular.Table{}, errors.New("pdf parsing requires the extraction service")
	}
	start := time.Now()
	rows, err := h.oracle.ExtractTable(r.Context(), data, "application/pdf")
	if err != nil {
		return tabular.Table{}, err
	}
	metrics.ObserveExtraction("table", metrics.ResultSuccess, time.Since(start))

	table := tabular.Table{Columns: []string{"Datum", "Zählerstand"}}
	for _, row := range rows {
		if row.Date == "" || row.Value == nil {
			continue
		}
		table.Rows = append(table.Rows, map[string]string{
			"Datum":       row.Date,
			"Zählerstand": strconv.FormatFloat(*row.Value, 'f', -1, 64),
		})
	}
	return table, nil
}

// handleDocument submits a document to the oracle and returns the
// sanitized extraction, split into eras when a swap was detected.
func (h *ScanHandler) handleDocument(w http.ResponseWriter, r *http.Request) {
	if h.oracle == nil {
		http.Error(w, "extraction service not configured", http.StatusServiceUnavailable)
		return
	}
	data, filename, err := h.readUpload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	extraction, err := h.oracle.ExtractDocument(r.Context(), data, mimeTypeFor(filename))
	if err != nil {
		switch {
		case errors.Is(err, ocr.ErrNothingUsable):
			metrics.ObserveExtraction("document", "empty", time.Since(start))
			http.Error(w, "no usable data in document", http.StatusUnprocessableEntity)
		default:
			metrics.ObserveExtraction("document", metrics.ResultError, time.Since(start))
			http.Error(w, "extraction service unavailable", http.StatusBadGateway)
		}
		return
	}
	metrics.ObserveExtraction("document", metrics.ResultSuccess, time.Since(start))

	eras := extraction.Sanitize()
	swapDetected := extraction.MeterSwapDetected && len(eras) > 1
	if len(eras) == 1 {
		// The oracle sometimes misses value discontinuities; a local
		// pass over the single era catches those.
		result := swap.Detect(eras[0].Rows, h.heuristic)
		if result.Detected {
			eras = result.Eras
			swapDetected = true
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"meter_number":        extraction.MeterNumber,
		"meter_name":          extraction.MeterName,
		"confidence":          extraction.Confidence,
		"meter_swap_detected": swapDetected,
		"eras":                erasToPayload(eras),
	})
}

// handlePhoto reads a live meter photo via the oracle.
func (h *ScanHandler) handlePhoto(w http.ResponseWriter, r *http.Request) {
	if h.oracle == nil {
		http.Error(w, "extraction service not configured", http.StatusServiceUnavailable)
		return
	}
	data, filename, err := h.readUpload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kindHint := r.URL.Query().Get("kind")

	start := time.Now()
	reading, err := h.oracle.ReadMeterPhoto(r.Context(), data, mimeTypeFor(filename), kindHint)
	if err != nil {
		switch {
		case errors.Is(err, ocr.ErrUnreadable):
			metrics.ObserveExtraction("photo", "unreadable", time.Since(start))
			http.Error(w, "meter display unreadable", http.StatusUnprocessableEntity)
		default:
			metrics.ObserveExtraction("photo", metrics.ResultError, time.Since(start))
			http.Error(w, "extraction service unavailable", http.StatusBadGateway)
		}
		return
	}
	metrics.ObserveExtraction("photo", metrics.ResultSuccess, time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reading)
}

type chainImportRequest struct {
	UnitID     string `json:"unit_id"`
	BuildingID string `json:"building_id"`
	Kind       string `json:"kind"`
	Number     string `json:"number"`
	Eras       []struct {
		Label    string `json:"label"`
		SwapNote string `json:"swap_note"`
		Readings []struct {
			Date  string  `json:"date"`
			Value float64 `json:"value"`
			Note  string  `json:"note"`
		} `json:"readings"`
	} `json:"eras"`
}

// handleChainImport persists a confirmed multi-era extraction as a
// linked meter lineage.
func (h *ScanHandler) handleChainImport(w http.ResponseWriter, r *http.Request) {
	var req chainImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	eras := make([]swap.Era, 0, len(req.Eras))
	for _, payload := range req.Eras {
		era := swap.Era{Label: payload.Label, SwapNote: payload.SwapNote}
		for _, row := range payload.Readings {
			date, err := time.Parse(dateLayout, row.Date)
			if err != nil {
				continue
			}
			era.Rows = append(era.Rows, swap.Row{Date: date.UTC(), Value: row.Value, Note: row.Note})
		}
		if len(era.Rows) > 0 {
			eras = append(eras, era)
		}
	}

	owner := metering.OwnerRef{UnitID: req.UnitID, BuildingID: req.BuildingID}
	result, err := h.chains.ImportChain(r.Context(), owner, metering.MeterKind(req.Kind), req.Number, eras)
	if err != nil {
		switch {
		case errors.Is(err, meterapp.ErrPartialChain):
			// Data was written; the caller gets what exists plus the error.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusMultiStatus)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"meter_ids": result.MeterIDs,
				"error":     "lineage links incomplete",
			})
		case errors.Is(err, meterapp.ErrTooFewEras):
			http.Error(w, "chain import needs at least two eras", http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"meter_ids": result.MeterIDs,
		"tallies":   result.Tallies,
	})
	h.logChainAudit(r, result.MeterIDs)
}

func (h *ScanHandler) logChainAudit(r *http.Request, meterIDs []string) {
	if h.auditLogger == nil {
		return
	}
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		return
	}
	payload, _ := json.Marshal(map[string]any{"meter_ids": meterIDs})
	entry := audit.Entry{
		OrgID:        orgID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       audit.ActionChainImport,
		ResourceType: "meter",
		Metadata:     payload,
	}
	entry.CaptureRequest(r)
	_ = h.auditLogger.Log(r.Context(), entry)
}

func (h *ScanHandler) readUpload(r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, h.maxUpload)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			return nil, "", errors.New("file too large or malformed upload")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", errors.New("missing file field")
		}
		defer file.Close()
		data, err := readAll(file, h.maxUpload)
		if err != nil {
			return nil, "", err
		}
		return data, header.Filename, nil
	}

	var req struct {
		Filename string `json:"filename"`
		Data     []byte `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, "", errors.New("invalid json")
	}
	if len(req.Data) == 0 {
		return nil, "", errors.New("empty file")
	}
	return req.Data, req.Filename, nil
}

func readAll(file multipart.File, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errors.New("file too large")
	}
	return data, nil
}

func erasToPayload(eras []swap.Era) []map[string]any {
	payload := make([]map[string]any, 0, len(eras))
	for _, era := range eras {
		rows := make([]map[string]any, 0, len(era.Rows))
		for _, row := range era.Rows {
			rows = append(rows, map[string]any{
				"date":  row.Date.Format(dateLayout),
				"value": row.Value,
				"note":  row.Note,
			})
		}
		payload = append(payload, map[string]any{
			"label":     era.Label,
			"swap_note": era.SwapNote,
			"readings":  rows,
		})
	}
	return payload
}

func mimeTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}
