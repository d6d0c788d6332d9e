package database

import (
	"strings"
	"testing"
)

func TestSchema_DeclaresTables(t *testing.T) {
	for _, table := range []string{"vehicles", "drivers", "trips", "assignments", "holidays", "roster_entries"} {
		if !strings.Contains(Schema(), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("建表语句缺少 %s", table)
		}
	}
}

func TestTruncateQuery(t *testing.T) {
	short := "SELECT 1"
	if got := truncateQuery(short); got != short {
		t.Errorf("truncateQuery(%q) = %q", short, got)
	}
	long := strings.Repeat("x", 250)
	got := truncateQuery(long)
	if len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("长查询应截断为200字符加省略号, got len=%d", len(got))
	}
}
