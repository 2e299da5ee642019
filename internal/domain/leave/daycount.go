package leave

import "time"

// Policy decides how many days a range costs. The zero value counts inclusive calendar days.
type Policy struct {
	BusinessDays bool
	Holidays     HolidayCalendar
}

// Days returns the inclusive day count between start and end.
func (p Policy) Days(start, end time.Time) (int, error) {
	start, end = DateOnly(start), DateOnly(end)
	span := int(end.Sub(start).Hours()/24) + 1
	if span <= 0 {
		return 0, ErrInvalidRange
	}
	if !p.BusinessDays {
		return span, nil
	}

	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsWeekend(d) || p.Holidays.IsHoliday(d) {
			continue
		}
		days++
	}
	if days == 0 {
		return 0, ErrAllDaysExcluded
	}
	return days, nil
}

func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// DateOnly drops the clock and zone, keeping the calendar date as UTC midnight.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO YYYY-MM-DD date.
func ParseDate(raw string) (time.Time, error) {
	return time.Parse(dateLayout, raw)
}
