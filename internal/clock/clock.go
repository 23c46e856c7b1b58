package clock

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// DateLayout 是 API 与配置中使用的日期格式。
const DateLayout = "2006-01-02"

// Clock 为业务层提供当前时间与"今天"。
// Today 返回配置时区下的日历日期，统一以 UTC 零点表示，便于存储和比较。
type Clock interface {
	Now() time.Time
	Today() time.Time
}

type zoneClock struct {
	loc *time.Location
	now func() time.Time
}

// New 构造基于系统时间、按 loc 计算日历日期的 Clock。
func New(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return zoneClock{loc: loc, now: time.Now}
}

// NewInZone 根据 IANA 时区名称构造 Clock，例如 Asia/Shanghai。
func NewInZone(name string) (Clock, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return New(time.UTC), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return New(loc), nil
}

func (c zoneClock) Now() time.Time {
	return c.now().In(c.loc)
}

func (c zoneClock) Today() time.Time {
	return DateOf(c.Now())
}

// DateOf 截取 t 在其自身时区下的年月日，返回对应的 UTC 零点。
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate 解析 2006-01-02 格式的日期。
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

// DaysBetween 返回 start 到 end 之间相差的日历天数（向上取整），end 早于 start 时返回 0。
func DaysBetween(start, end time.Time) int {
	diff := DateOf(end).Sub(DateOf(start)).Hours() / 24
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(diff))
}

// Fixed 是可手动推进的 Clock，用于测试。
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed 构造停在 t 的时钟。
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fixed) Today() time.Time {
	return DateOf(f.Now())
}

// Set 将时钟拨到 t。
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// AdvanceDays 将时钟向后推进 n 天。
func (f *Fixed) AdvanceDays(n int) {
	f.mu.Lock()
	f.now = f.now.AddDate(0, 0, n)
	f.mu.Unlock()
}
