package slots

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

const (
	TimeLayout = "03:04 PM"
	DateLayout = "2006-01-02"
)

// DefaultTimes are the hourly slots offered by the clinic, 07:00 AM to 08:00 PM.
var DefaultTimes = []string{
	"07:00 AM", "08:00 AM", "09:00 AM", "10:00 AM", "11:00 AM",
	"12:00 PM", "01:00 PM", "02:00 PM", "03:00 PM", "04:00 PM",
	"05:00 PM", "06:00 PM", "07:00 PM", "08:00 PM",
}

var DefaultHolidays = []string{"2025-12-25", "2025-01-01"}

// Catalog is the fixed set of bookable times of day and blocked calendar dates.
// It is immutable once built and safe for concurrent use.
type Catalog struct {
	times    []string
	offsets  map[string]time.Duration
	holidays map[string]struct{}
}

// NewCatalog validates and builds a catalog. Times are kept in chronological order.
func NewCatalog(times, holidays []string) (*Catalog, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("slot catalog needs at least one time")
	}

	c := &Catalog{
		offsets:  make(map[string]time.Duration, len(times)),
		holidays: make(map[string]struct{}, len(holidays)),
	}

	for _, t := range times {
		offset, err := ParseTime(t)
		if err != nil {
			return nil, err
		}
		if _, dup := c.offsets[t]; dup {
			return nil, fmt.Errorf("duplicate slot time %q", t)
		}
		c.offsets[t] = offset
		c.times = append(c.times, t)
	}
	sort.SliceStable(c.times, func(i, j int) bool {
		return c.offsets[c.times[i]] < c.offsets[c.times[j]]
	})

	for _, d := range holidays {
		if _, err := time.Parse(DateLayout, d); err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", d, err)
		}
		c.holidays[d] = struct{}{}
	}

	return c, nil
}

// Default returns the clinic's standard catalog.
func Default() *Catalog {
	c, err := NewCatalog(DefaultTimes, DefaultHolidays)
	if err != nil {
		panic(err)
	}
	return c
}

// Times returns the bookable times in order. The slice is a copy.
func (c *Catalog) Times() []string {
	return slices.Clone(c.times)
}

func (c *Catalog) IsTime(t string) bool {
	_, ok := c.offsets[t]
	return ok
}

// Offset returns how far after midnight a catalog time starts.
func (c *Catalog) Offset(t string) (time.Duration, bool) {
	d, ok := c.offsets[t]
	return d, ok
}

// Holidays returns the blocked dates sorted ascending.
func (c *Catalog) Holidays() []string {
	out := make([]string, 0, len(c.holidays))
	for d := range c.holidays {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// IsHoliday reports whether a date in DateLayout form is blocked.
func (c *Catalog) IsHoliday(date string) bool {
	_, ok := c.holidays[date]
	return ok
}

// ParseTime converts a "03:04 PM" value into its offset from midnight.
func ParseTime(s string) (time.Duration, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid slot time %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
