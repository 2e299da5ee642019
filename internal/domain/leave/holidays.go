package leave

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

type Holiday struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// HolidayCalendar is a set of ISO dates. The zero value has no holidays.
type HolidayCalendar struct {
	days map[string]string
}

var ErrHolidayFormat = errors.New("unrecognized holiday file format")

func NewHolidayCalendar(holidays []Holiday) HolidayCalendar {
	cal := HolidayCalendar{days: make(map[string]string, len(holidays))}
	for _, h := range holidays {
		d, err := ParseDate(strings.TrimSpace(h.Date))
		if err != nil {
			continue
		}
		cal.days[d.Format(dateLayout)] = h.Name
	}
	return cal
}

func (c HolidayCalendar) IsHoliday(d time.Time) bool {
	_, ok := c.days[d.Format(dateLayout)]
	return ok
}

func (c HolidayCalendar) Len() int {
	return len(c.days)
}

// Year returns the holidays of one year sorted by date.
func (c HolidayCalendar) Year(year int) []Holiday {
	prefix := fmt.Sprintf("%04d-", year)
	out := make([]Holiday, 0)
	for date, name := range c.days {
		if strings.HasPrefix(date, prefix) {
			out = append(out, Holiday{Date: date, Name: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// DefaultHolidays is the bundled India 2025 calendar.
func DefaultHolidays() HolidayCalendar {
	return NewHolidayCalendar([]Holiday{
		{Date: "2025-01-01", Name: "New Year's Day"},
		{Date: "2025-01-26", Name: "Republic Day"},
		{Date: "2025-03-14", Name: "Holi"},
		{Date: "2025-03-31", Name: "Idul Fitr"},
		{Date: "2025-04-18", Name: "Good Friday"},
		{Date: "2025-05-01", Name: "Labour Day"},
		{Date: "2025-08-15", Name: "Independence Day"},
		{Date: "2025-10-02", Name: "Gandhi Jayanti"},
		{Date: "2025-10-21", Name: "Diwali"},
		{Date: "2025-12-25", Name: "Christmas Day"},
	})
}

// LoadHolidays reads a calendar file, or returns DefaultHolidays when path is empty.
func LoadHolidays(path string) (HolidayCalendar, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultHolidays(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return HolidayCalendar{}, fmt.Errorf("read holidays: %w", err)
	}
	return ParseHolidays(data)
}

// ParseHolidays accepts a year-keyed object ({"2025": ["2025-01-01", ...]}), a date-keyed
// object ({"2025-01-01": "New Year"}), or a list of {"date","name"} objects.
func ParseHolidays(data []byte) (HolidayCalendar, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return HolidayCalendar{}, ErrHolidayFormat
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return HolidayCalendar{}, fmt.Errorf("%w: %v", ErrHolidayFormat, err)
		}
		return NewHolidayCalendar(holidaysFromList(items)), nil
	case '{':
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return HolidayCalendar{}, fmt.Errorf("%w: %v", ErrHolidayFormat, err)
		}
		var holidays []Holiday
		for key, value := range doc {
			var name string
			if err := json.Unmarshal(value, &name); err == nil {
				holidays = append(holidays, Holiday{Date: key, Name: name})
				continue
			}
			var items []json.RawMessage
			if err := json.Unmarshal(value, &items); err != nil {
				return HolidayCalendar{}, fmt.Errorf("%w: key %q", ErrHolidayFormat, key)
			}
			holidays = append(holidays, holidaysFromList(items)...)
		}
		return NewHolidayCalendar(holidays), nil
	}
	return HolidayCalendar{}, ErrHolidayFormat
}

func holidaysFromList(items []json.RawMessage) []Holiday {
	var out []Holiday
	for _, item := range items {
		var date string
		if err := json.Unmarshal(item, &date); err == nil {
			out = append(out, Holiday{Date: date})
			continue
		}
		var obj struct {
			Date      string `json:"date"`
			Day       string `json:"day"`
			Name      string `json:"name"`
			LocalName string `json:"localName"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		h := Holiday{Date: obj.Date, Name: obj.Name}
		if h.Date == "" {
			h.Date = obj.Day
		}
		if h.Name == "" {
			h.Name = obj.LocalName
		}
		out = append(out, h)
	}
	return out
}
