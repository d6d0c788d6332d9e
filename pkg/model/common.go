// Package model 定义线路优化与司机调度的核心数据模型
package model

import (
	"fmt"
	"math"
	"time"
)

const (
	// DateFormat 日期格式
	DateFormat = "2006-01-02"
	// ClockFormat 时刻格式
	ClockFormat = "15:04"
)

// TimeRange 时间范围（左闭右开）
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration 返回时间范围的持续时间
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Overlaps 检查两个时间范围是否重叠
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return tr.Start.Before(other.End) && other.Start.Before(tr.End)
}

// Contains 检查时间范围是否包含某个时间点
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && t.Before(tr.End)
}

// Span 返回时间范围在 loc 下涉及的日期，End 恰为零点时不含该日
func (tr TimeRange) Span(loc *time.Location) DateRange {
	if loc == nil {
		loc = time.UTC
	}
	last := tr.Start
	if tr.End.After(tr.Start) {
		last = tr.End.Add(-time.Nanosecond)
	}
	return DateRange{
		StartDate: tr.Start.In(loc).Format(DateFormat),
		EndDate:   last.In(loc).Format(DateFormat),
	}
}

// DateRange 日期范围（两端包含）
type DateRange struct {
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
}

// SingleDay 返回仅包含一天的日期范围
func SingleDay(date string) DateRange {
	return DateRange{StartDate: date, EndDate: date}
}

// Bounds 解析起止日期
func (dr DateRange) Bounds() (time.Time, time.Time, error) {
	start, err := time.Parse(DateFormat, dr.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("无效的开始日期 %q: %w", dr.StartDate, err)
	}
	end, err := time.Parse(DateFormat, dr.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("无效的结束日期 %q: %w", dr.EndDate, err)
	}
	return start, end, nil
}

// Days 返回范围内的天数，范围无效时返回0
func (dr DateRange) Days() int {
	start, end, err := dr.Bounds()
	if err != nil || end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Dates 按顺序列出范围内的每一天
func (dr DateRange) Dates() []string {
	start, end, err := dr.Bounds()
	if err != nil || end.Before(start) {
		return nil
	}
	dates := make([]string, 0, dr.Days())
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateFormat))
	}
	return dates
}

// Contains 检查日期是否在范围内
func (dr DateRange) Contains(date string) bool {
	// YYYY-MM-DD 字典序与时间序一致
	return date >= dr.StartDate && date <= dr.EndDate
}

// Location 地点（地址 + 可用于测距的坐标）
type Location struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Key 返回用于缓存的位置键
func (l Location) Key() string {
	return fmt.Sprintf("%.5f,%.5f", l.Latitude, l.Longitude)
}

// HasCoordinates 检查是否已有坐标
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// Distance 计算两个位置之间的距离（公里）
// 使用 Haversine 公式
func (l Location) Distance(other Location) float64 {
	const earthRadius = 6371.0 // 地球半径（公里）

	lat1Rad := l.Latitude * math.Pi / 180
	lat2Rad := other.Latitude * math.Pi / 180
	deltaLat := (other.Latitude - l.Latitude) * math.Pi / 180
	deltaLon := (other.Longitude - l.Longitude) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// ParseClock 将日期与 HH:MM 组合为时间点
func ParseClock(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateFormat+" "+ClockFormat, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("无效的日期时间 %q %q: %w", date, clock, err)
	}
	return t, nil
}

// DayWindow 返回某日的整天时间范围
func DayWindow(date string, loc *time.Location) (TimeRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation(DateFormat, date, loc)
	if err != nil {
		return TimeRange{}, fmt.Errorf("无效的日期 %q: %w", date, err)
	}
	return TimeRange{Start: start, End: start.AddDate(0, 0, 1)}, nil
}
