// Package cost 提供两地之间的行驶距离/时间估算
package cost

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/paiban/fleetplan/pkg/model"
)

// ErrUnavailable 估算服务不可用
var ErrUnavailable = errors.New("行驶成本服务不可用")

// Estimate 行驶估算
type Estimate struct {
	DistanceKm float64       `json:"distance_km"`
	Duration   time.Duration `json:"duration"`
}

// Provider 行驶成本提供者
type Provider interface {
	Between(ctx context.Context, from, to model.Location) (Estimate, error)
}

// ProviderFunc 函数适配器
type ProviderFunc func(ctx context.Context, from, to model.Location) (Estimate, error)

// Between 实现 Provider
func (f ProviderFunc) Between(ctx context.Context, from, to model.Location) (Estimate, error) {
	return f(ctx, from, to)
}

// Haversine 基于球面距离和平均车速的估算
type Haversine struct {
	// AvgSpeedKmh 平均车速（公里/小时）
	AvgSpeedKmh float64
	// DetourFactor 路网绕行系数，直线距离乘以该系数
	DetourFactor float64
}

// NewHaversine 创建球面距离估算器
func NewHaversine(avgSpeedKmh float64) *Haversine {
	if avgSpeedKmh <= 0 {
		avgSpeedKmh = 40
	}
	return &Haversine{AvgSpeedKmh: avgSpeedKmh, DetourFactor: 1.3}
}

// Between 实现 Provider
func (h *Haversine) Between(ctx context.Context, from, to model.Location) (Estimate, error) {
	if err := ctx.Err(); err != nil {
		return Estimate{}, err
	}
	if !from.HasCoordinates() || !to.HasCoordinates() {
		return Estimate{}, ErrUnavailable
	}
	factor := h.DetourFactor
	if factor < 1 {
		factor = 1
	}
	km := from.Distance(to) * factor
	minutes := km / h.AvgSpeedKmh * 60
	return Estimate{
		DistanceKm: km,
		Duration:   time.Duration(math.Round(minutes*60)) * time.Second,
	}, nil
}
