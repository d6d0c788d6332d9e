package constraints

import (
	"testing"
	"time"

	"github.com/paiban/fleetplan/internal/config"
)

func TestBuild_ListsRulesInEvaluationOrder(t *testing.T) {
	lib := Build(config.Default())

	var conflicts, dispatch []Definition
	for _, d := range lib.Rules {
		switch d.Category {
		case CategoryConflict:
			conflicts = append(conflicts, d)
		case CategoryDispatch:
			dispatch = append(dispatch, d)
		}
	}

	if len(conflicts) != 5 {
		t.Fatalf("期望5条冲突规则, got %d", len(conflicts))
	}
	if conflicts[0].Name != "double_booking" || conflicts[0].Type != "critical" {
		t.Errorf("首条冲突规则 = %s/%s", conflicts[0].Name, conflicts[0].Type)
	}
	for i, d := range conflicts {
		if d.Order != i+1 {
			t.Errorf("%s Order = %d, expected %d", d.Name, d.Order, i+1)
		}
		if d.DisplayName == "" {
			t.Errorf("%s 缺少显示名称", d.Name)
		}
	}

	if len(dispatch) != 6 {
		t.Fatalf("期望6个派车因子, got %d", len(dispatch))
	}
	hard := 0
	for _, d := range dispatch {
		if d.Type == "hard" {
			hard++
		}
	}
	if hard != 2 {
		t.Errorf("期望2个硬性条件, got %d", hard)
	}
}

func TestBuild_ReflectsConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduling.MaxDailyHours = 9.5
	cfg.Scheduling.MinTurnaround = 10 * time.Minute
	cfg.Scoring.RegularBonus = 25

	lib := Build(cfg)

	travel, err := lib.Find("insufficient_travel_time")
	if err != nil {
		t.Fatal(err)
	}
	if len(travel.Params) != 1 || travel.Params[0].Value != "10m0s" {
		t.Errorf("min_turnaround 参数 = %+v", travel.Params)
	}

	over, _ := lib.Find("max_hours_exceeded")
	if over.Params[0].Value != "9.5" {
		t.Errorf("max_daily_hours = %s, expected 9.5", over.Params[0].Value)
	}

	regular, _ := lib.Find("RegularDriver")
	if regular.Params[0].Value != "25" {
		t.Errorf("regular_bonus = %s, expected 25", regular.Params[0].Value)
	}

	if _, err := lib.Find("max_hours_per_week"); err == nil {
		t.Error("未知规则应返回错误")
	}
}
