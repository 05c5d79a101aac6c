package apihttp

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleettrack-harvest/internal/observability/metrics"
	tracking "fleettrack-harvest/internal/tracking/domain"
	"fleettrack-harvest/internal/tracking/interfaces"
)

const timeLayout = time.RFC3339

type deviceView struct {
	DeviceID        string    `json:"deviceid"`
	Registration    string    `json:"registration"`
	Symbol          string    `json:"symbol"`
	District        string    `json:"district"`
	DistrictDisplay string    `json:"district_display"`
	InternalOnly    bool      `json:"internal_only"`
	Hidden          bool      `json:"hidden"`
	Seen            time.Time `json:"seen"`
	Longitude       float64   `json:"longitude"`
	Latitude        float64   `json:"latitude"`
	Heading         float64   `json:"heading"`
	Velocity        float64   `json:"velocity"`
	Altitude        float64   `json:"altitude"`
	SourceType      string    `json:"source_device_type"`
}

type pointView struct {
	Seen      time.Time `json:"seen"`
	Longitude float64   `json:"longitude"`
	Latitude  float64   `json:"latitude"`
	Heading   float64   `json:"heading"`
	Velocity  float64   `json:"velocity"`
	Altitude  float64   `json:"altitude"`
	Raw       string    `json:"raw"`
}

func toDeviceView(device tracking.Device) deviceView {
	return deviceView{
		DeviceID:        device.ExternalID,
		Registration:    device.Registration,
		Symbol:          device.Symbol,
		District:        device.District,
		DistrictDisplay: device.DistrictDisplay,
		InternalOnly:    device.InternalOnly,
		Hidden:          device.Hidden,
		Seen:            device.Seen.UTC(),
		Longitude:       device.Point.Longitude,
		Latitude:        device.Point.Latitude,
		Heading:         device.Heading,
		Velocity:        device.Velocity,
		Altitude:        device.Altitude,
		SourceType:      device.SourceType,
	}
}

func toPointView(point tracking.LoggedPoint) pointView {
	return pointView{
		Seen:      point.Seen.UTC(),
		Longitude: point.Point.Longitude,
		Latitude:  point.Point.Latitude,
		Heading:   point.Heading,
		Velocity:  point.Velocity,
		Altitude:  point.Altitude,
		Raw:       point.Raw,
	}
}

// DevicesHandler serves GET /api/v1/devices.
type DevicesHandler struct {
	query      tracking.DeviceQuery
	sourceType string
}

// NewDevicesHandler constructs a DevicesHandler.
func NewDevicesHandler(query tracking.DeviceQuery, sourceType string) *DevicesHandler {
	if sourceType == "" {
		sourceType = tracking.SourceTypeFleetcare
	}
	return &DevicesHandler{query: query, sourceType: sourceType}
}

// ServeHTTP handles GET /api/v1/devices.
func (h *DevicesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.query == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	devices, err := h.query.List(r.Context(), h.sourceType)
	if err != nil {
		http.Error(w, "query devices error", http.StatusInternalServerError)
		return
	}

	views := make([]deviceView, 0, len(devices))
	for _, device := range devices {
		views = append(views, toDeviceView(device))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}

// DeviceHandler serves the /api/v1/devices/{deviceid} subtree:
// the device itself, its point history, and history exports.
type DeviceHandler struct {
	query      tracking.DeviceQuery
	sourceType string
	logger     *log.Logger
}

// NewDeviceHandler constructs a DeviceHandler.
func NewDeviceHandler(query tracking.DeviceQuery, sourceType string, logger *log.Logger) *DeviceHandler {
	if sourceType == "" {
		sourceType = tracking.SourceTypeFleetcare
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DeviceHandler{query: query, sourceType: sourceType, logger: logger}
}

// ServeHTTP dispatches by path under /api/v1/devices/.
func (h *DeviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.query == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/devices/")
	if rest == "" || rest == r.URL.Path {
		http.NotFound(w, r)
		return
	}
	parts := strings.Split(rest, "/")
	externalID := parts[0]
	if externalID == "" {
		http.NotFound(w, r)
		return
	}

	device, err := h.query.Get(r.Context(), h.sourceType, externalID)
	if err != nil {
		http.Error(w, "query device error", http.StatusInternalServerError)
		return
	}
	if device == nil {
		http.NotFound(w, r)
		return
	}

	switch {
	case len(parts) == 1:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toDeviceView(*device))
	case len(parts) == 2 && parts[1] == "history":
		h.serveHistory(w, r, device)
	case len(parts) == 3 && parts[1] == "history" && strings.HasPrefix(parts[2], "export."):
		h.serveExport(w, r, device, strings.TrimPrefix(parts[2], "export."))
	default:
		http.NotFound(w, r)
	}
}

func (h *DeviceHandler) serveHistory(w http.ResponseWriter, r *http.Request, device *tracking.Device) {
	points, ok := h.queryHistory(w, r, device)
	if !ok {
		return
	}

	views := make([]pointView, 0, len(points))
	for _, point := range points {
		views = append(views, toPointView(point))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}

func (h *DeviceHandler) serveExport(w http.ResponseWriter, r *http.Request, device *tracking.Device, format string) {
	points, ok := h.queryHistory(w, r, device)
	if !ok {
		return
	}

	start := time.Now()
	var payload []byte
	var err error
	switch format {
	case "xlsx":
		payload, err = interfaces.BuildHistoryXLSX(device, points)
	case "pdf":
		payload, err = interfaces.BuildHistoryPDF(device, points)
	default:
		http.Error(w, "unsupported export format", http.StatusBadRequest)
		return
	}
	if err != nil {
		metrics.ObserveExport(format, "error", time.Since(start))
		h.logger.Printf("history export error: device=%s format=%s err=%v", device.ExternalID, format, err)
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(format, "ok", time.Since(start))

	switch format {
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	case "pdf":
		w.Header().Set("Content-Type", "application/pdf")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="history_`+device.ExternalID+`.`+format+`"`)
	_, _ = w.Write(payload)
}

func (h *DeviceHandler) queryHistory(w http.ResponseWriter, r *http.Request, device *tracking.Device) ([]tracking.LoggedPoint, bool) {
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return nil, false
	}
	limit, err := parseLimitQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	points, err := h.query.History(r.Context(), device.ID, from, to, limit)
	if err != nil {
		http.Error(w, "query history error", http.StatusInternalServerError)
		return nil, false
	}
	return points, true
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func parseLimitQuery(r *http.Request) (int, error) {
	value := r.URL.Query().Get("limit")
	if value == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(value)
	if err != nil || limit < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return limit, nil
}
