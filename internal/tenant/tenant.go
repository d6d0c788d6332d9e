// Package tenant 提供多租户支持
package tenant

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Header 租户请求头
const Header = "X-Tenant-ID"

var (
	ErrMissingTenant  = errors.New("缺少租户标识")
	ErrInvalidTenant  = errors.New("无效的租户")
	ErrTenantDisabled = errors.New("租户已禁用")
)

// Tenant 租户
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`     // active/suspended
	RateLimit int       `json:"rate_limit"` // 每秒请求数，0 表示使用全局配置
}

// IsActive 检查租户是否活跃
func (t *Tenant) IsActive() bool {
	return t.Status == "" || t.Status == "active"
}

// Parse 解析租户ID
func Parse(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, ErrMissingTenant
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrInvalidTenant
	}
	return id, nil
}

// FromRequest 从请求头解析租户ID
func FromRequest(r *http.Request) (uuid.UUID, error) {
	return Parse(r.Header.Get(Header))
}

// Manager 已登记租户目录
// 目录为空时接受任何合法的租户ID
type Manager struct {
	tenants map[uuid.UUID]*Tenant
	mu      sync.RWMutex
}

// NewManager 创建租户目录
func NewManager() *Manager {
	return &Manager{tenants: make(map[uuid.UUID]*Tenant)}
}

// Register 登记租户
func (m *Manager) Register(t *Tenant) error {
	if t == nil || t.ID == uuid.Nil {
		return ErrInvalidTenant
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
	return nil
}

// Resolve 校验租户并返回其配置
func (m *Manager) Resolve(id uuid.UUID) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.tenants) == 0 {
		return &Tenant{ID: id, Status: "active"}, nil
	}
	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrInvalidTenant
	}
	if !t.IsActive() {
		return nil, ErrTenantDisabled
	}
	return t, nil
}

type tenantContextKey struct{}

// WithTenant 将租户添加到上下文
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, t)
}

// FromContext 从上下文获取租户
func FromContext(ctx context.Context) (*Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey{}).(*Tenant)
	return t, ok && t != nil
}

// IDFromContext 从上下文获取租户ID
func IDFromContext(ctx context.Context) (uuid.UUID, bool) {
	t, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return t.ID, true
}
