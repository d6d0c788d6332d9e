package handler

import (
	"net/http"

	"github.com/paiban/fleetplan/internal/constraints"
	"github.com/paiban/fleetplan/internal/service"
	"github.com/paiban/fleetplan/pkg/dispatcher"
)

// APIHandler 调度API处理器
type APIHandler struct {
	svc   *service.Service
	rules constraints.Library
}

// NewAPIHandler 创建API处理器
func NewAPIHandler(svc *service.Service, rules constraints.Library) *APIHandler {
	return &APIHandler{svc: svc, rules: rules}
}

// Register 注册 /api/v1 路由
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/routes/optimize", h.OptimizeRoutes)
	mux.HandleFunc("GET /api/v1/drivers/{id}/availability", h.CheckAvailability)
	mux.HandleFunc("GET /api/v1/conflicts", h.DetectConflicts)
	mux.HandleFunc("POST /api/v1/drivers/suggest", h.SuggestDrivers)
	mux.HandleFunc("POST /api/v1/assignments/auto", h.AutoAssign)
	mux.HandleFunc("GET /api/v1/workload", h.Workload)
	mux.HandleFunc("GET /api/v1/dashboard", h.Dashboard)
	mux.HandleFunc("GET /api/v1/rules", h.Rules)
}

func rangeInput(r *http.Request) service.RangeInput {
	q := r.URL.Query()
	return service.RangeInput{StartDate: q.Get("startDate"), EndDate: q.Get("endDate")}
}

// OptimizeRoutes 线路优化
// POST /api/v1/routes/optimize
func (h *APIHandler) OptimizeRoutes(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var in service.OptimizeRoutesInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	res, err := h.svc.OptimizeRoutes(r.Context(), tid, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// CheckAvailability 司机可用性
// GET /api/v1/drivers/{id}/availability?date=&startTime=&durationMinutes=
func (h *APIHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	res, err := h.svc.CheckAvailability(r.Context(), tid, service.AvailabilityInput{
		DriverID:        r.PathValue("id"),
		Date:            q.Get("date"),
		StartTime:       q.Get("startTime"),
		DurationMinutes: q.Get("durationMinutes"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// DetectConflicts 冲突检测
// GET /api/v1/conflicts?startDate=&endDate=
func (h *APIHandler) DetectConflicts(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	res, err := h.svc.DetectConflicts(r.Context(), tid, rangeInput(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// SuggestResponse 司机推荐响应
type SuggestResponse struct {
	Recommendations []dispatcher.Recommendation `json:"recommendations"`
}

// SuggestDrivers 司机推荐
// POST /api/v1/drivers/suggest
func (h *APIHandler) SuggestDrivers(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var in service.SuggestInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	recs, err := h.svc.SuggestDrivers(r.Context(), tid, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, SuggestResponse{Recommendations: recs})
}

// AutoAssign 自动派车
// POST /api/v1/assignments/auto
func (h *APIHandler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var in service.AutoAssignInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	res, err := h.svc.AutoAssign(r.Context(), tid, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Workload 工作量统计
// GET /api/v1/workload?startDate=&endDate=
func (h *APIHandler) Workload(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	res, err := h.svc.Workload(r.Context(), tid, rangeInput(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Dashboard 运营看板
// GET /api/v1/dashboard?startDate=&endDate=
func (h *APIHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	res, err := h.svc.Dashboard(r.Context(), tid, rangeInput(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Rules 当前生效的冲突规则与派车因子
// GET /api/v1/rules
func (h *APIHandler) Rules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.rules)
}
