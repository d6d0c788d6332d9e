// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"

	"github.com/paiban/fleetplan/pkg/model"
)

// TripQuery 行程查询条件
type TripQuery struct {
	Range          model.DateRange
	UnassignedOnly bool
}

// Matches 检查行程是否满足查询条件
func (q TripQuery) Matches(t *model.Trip) bool {
	if q.UnassignedOnly && t.IsAssigned() {
		return false
	}
	return q.Range.Contains(t.Date())
}

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxDB 支持事务的数据库
type TxDB interface {
	DB
	Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Scanner 行扫描接口
type Scanner interface {
	Scan(dest ...interface{}) error
}
