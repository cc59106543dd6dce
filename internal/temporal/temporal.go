// Package temporal holds the calendar values time.Time does not model:
// a wall-clock time of day, ISO-8601 periods, year-months and month-days.
package temporal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// TimeOfDay is a wall-clock time stored as nanoseconds since midnight.
type TimeOfDay time.Duration

const day = 24 * time.Hour

func NewTimeOfDay(hour, min, sec, nsec int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute +
		time.Duration(sec)*time.Second + time.Duration(nsec))
}

// ClockOf takes the clock portion of t.
func ClockOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return NewTimeOfDay(h, m, s, t.Nanosecond())
}

func (t TimeOfDay) Nanos() int64 { return int64(t) }

func (t TimeOfDay) String() string {
	d := time.Duration(t) % day
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	ns := d % time.Second
	if ns == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return strings.TrimRight(fmt.Sprintf("%02d:%02d:%02d.%09d", h, m, s, ns), "0")
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05.999999999", "15:04:05", "15:04"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return ClockOf(t), nil
		}
	}
	return 0, errors.Errorf("invalid time of day %q", s)
}

// Period is a date-based amount of time, such as P1Y2M3D.
type Period struct {
	Years, Months, Days int
}

func (p Period) IsZero() bool { return p == Period{} }

func (p Period) String() string {
	if p.IsZero() {
		return "P0D"
	}
	var b strings.Builder
	b.WriteByte('P')
	if p.Years != 0 {
		fmt.Fprintf(&b, "%dY", p.Years)
	}
	if p.Months != 0 {
		fmt.Fprintf(&b, "%dM", p.Months)
	}
	if p.Days != 0 {
		fmt.Fprintf(&b, "%dD", p.Days)
	}
	return b.String()
}

var periodRe = regexp.MustCompile(`^([-+]?)P(?:([-+]?\d+)Y)?(?:([-+]?\d+)M)?(?:([-+]?\d+)W)?(?:([-+]?\d+)D)?$`)

func ParsePeriod(s string) (Period, error) {
	m := periodRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil || s == "P" {
		return Period{}, errors.Errorf("invalid period %q", s)
	}
	num := func(v string) int {
		if v == "" {
			return 0
		}
		n, _ := strconv.Atoi(v)
		return n
	}
	p := Period{Years: num(m[2]), Months: num(m[3]), Days: num(m[4])*7 + num(m[5])}
	if m[1] == "-" {
		p = Period{Years: -p.Years, Months: -p.Months, Days: -p.Days}
	}
	return p, nil
}

// YearMonth is a month of a specific year, written 2024-05.
type YearMonth struct {
	Year  int
	Month time.Month
}

func (ym YearMonth) IsZero() bool { return ym == YearMonth{} }

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, errors.Wrapf(err, "invalid year-month %q", s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// MonthDay is a recurring calendar day, written --05-17.
type MonthDay struct {
	Month time.Month
	Day   int
}

func (md MonthDay) IsZero() bool { return md == MonthDay{} }

func (md MonthDay) String() string {
	return fmt.Sprintf("--%02d-%02d", int(md.Month), md.Day)
}

func ParseMonthDay(s string) (MonthDay, error) {
	v := strings.TrimPrefix(strings.TrimSpace(s), "--")
	// leap year so that --02-29 parses
	t, err := time.Parse("2006-01-02", "2000-"+v)
	if err != nil {
		return MonthDay{}, errors.Wrapf(err, "invalid month-day %q", s)
	}
	return MonthDay{Month: t.Month(), Day: t.Day()}, nil
}
