// Package handler 提供API处理器
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/paiban/fleetplan/internal/tenant"
	apperrors "github.com/paiban/fleetplan/pkg/errors"
	"github.com/paiban/fleetplan/pkg/logger"
)

// maxBodyBytes 请求体大小上限
const maxBodyBytes = 4 << 20

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.From(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("请求处理失败")
	}

	body := map[string]interface{}{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	if appErr.Details != "" {
		body["details"] = appErr.Details
	}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	respondJSON(w, appErr.HTTPStatus, body)
}

// decodeJSON 解析请求体
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("body", "请求体不能为空")
		}
		return apperrors.InvalidInput("body", "JSON 格式错误").WithDetails(err.Error())
	}
	return nil
}

// tenantID 从上下文取租户ID
func tenantID(r *http.Request) (uuid.UUID, error) {
	id, ok := tenant.IDFromContext(r.Context())
	if !ok {
		return uuid.Nil, apperrors.InvalidInput(tenant.Header, "缺少租户标识")
	}
	return id, nil
}
