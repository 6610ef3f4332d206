// Package gantt implements the scheduling core: date normalization, parent
// rollup and structural ID reassignment. It is storage-agnostic; callers
// provide a TaskSet backed by the live table or by a snapshot document.
package gantt

import (
	"math"

	"ganttservice/internal/model"
)

// 解析失败时的兜底日期，与存量数据的惯例保持一致
const (
	FallbackStart = "2025-01-01"
	FallbackEnd   = "2025-01-02"
)

// ParseDate parses "YYYY-MM-DD". On empty or malformed input it falls back
// to fallback; an empty fallback yields ok=false and a zero Date.
func ParseDate(s, fallback string) (model.Date, bool) {
	if d, ok := model.ParseDateString(s); ok {
		return d, true
	}
	if fallback == "" {
		return model.Date{}, false
	}
	d, ok := model.ParseDateString(fallback)
	return d, ok
}

// NormalizeProgress clamps progress into [0, 1]; NaN becomes 0.
func NormalizeProgress(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// DurationDays 含首尾两天的天数，非法或缺失日期时最少为 1
func DurationDays(start, end model.Date) int {
	if start.IsZero() || end.IsZero() {
		return 1
	}
	days := start.DaysUntil(end)
	if days < 1 {
		return 1
	}
	return days
}
