package assistant

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"hrcopilot/internal/domain/leave"
)

const maxReasonLength = 200

// ParsedRequest is a best-effort reading of an utterance. Nil dates mean none were found.
type ParsedRequest struct {
	Intent            Intent
	EmployeeID        string
	LeaveType         leave.LeaveType
	LeaveTypeExplicit bool
	StartDate         *time.Time
	EndDate           *time.Time
	Reason            string
}

type leaveAlias struct {
	pattern   *regexp.Regexp
	leaveType leave.LeaveType
}

type Parser struct {
	employeeID *regexp.Regexp
	isoDate    *regexp.Regexp
	fromTo     *regexp.Regexp
	relative   *regexp.Regexp
	dayCount   *regexp.Regexp
	connectors *regexp.Regexp
	spaces     *regexp.Regexp
	aliases    []leaveAlias
	reasons    []*regexp.Regexp
}

func NewParser() *Parser {
	aliases := []struct {
		word string
		t    leave.LeaveType
	}{
		{"pl", leave.Casual}, {"privilege", leave.Casual}, {"privileged", leave.Casual},
		{"casual", leave.Casual}, {"cl", leave.Casual},
		{"sl", leave.Sick}, {"sick", leave.Sick}, {"sick leave", leave.Sick},
	}
	p := &Parser{
		employeeID: regexp.MustCompile(`(?i)\b(E?\d{4,6})\b`),
		isoDate:    regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		fromTo:     regexp.MustCompile(`\bfrom (.+?) to (.+)`),
		relative:   regexp.MustCompile(`\b(day after tomorrow|tomorrow|today|next week|(?:next|this) (?:monday|tuesday|wednesday|thursday|friday|saturday|sunday))\b`),
		dayCount:   regexp.MustCompile(`\b(\d+|one|two|three|four|five|six|seven|eight|nine|ten)\s+(?:days?|pl|cl|sl)\b`),
		connectors: regexp.MustCompile(`(?i)(^|\s)(from|to|on|till|until)(\s+(from|to|on|till|until))*\s*$`),
		spaces:     regexp.MustCompile(`\s+`),
	}
	for _, a := range aliases {
		p.aliases = append(p.aliases, leaveAlias{
			pattern:   regexp.MustCompile(`\b` + regexp.QuoteMeta(a.word) + `\b`),
			leaveType: a.t,
		})
	}
	// Strong markers first so "for 2 days because of fever" picks "fever".
	for _, marker := range []string{"because of", "because", "due to", "reason is", "reason", "as", "for"} {
		p.reasons = append(p.reasons, regexp.MustCompile(`(?i)\b`+marker+`\b[:\s]+(.+)`))
	}
	return p
}

// Parse extracts what it can from text. knownEmployeeID fills in when the text names no id,
// and today anchors relative dates.
func (p *Parser) Parse(text, knownEmployeeID string, today time.Time) ParsedRequest {
	cleaned := FixTypos(text)
	lower := strings.ToLower(cleaned)
	today = leave.DateOnly(today)

	out := ParsedRequest{
		Intent:     ClassifyIntent(cleaned),
		EmployeeID: p.ExtractEmployeeID(cleaned),
		LeaveType:  leave.Casual,
	}
	if out.EmployeeID == "" {
		out.EmployeeID = strings.TrimSpace(knownEmployeeID)
	}
	if t, ok := p.leaveType(lower); ok {
		out.LeaveType, out.LeaveTypeExplicit = t, true
	}
	out.StartDate, out.EndDate = p.dates(lower, today)
	out.Reason = p.reason(cleaned)
	return out
}

// ExtractEmployeeID finds the first E-prefixed or bare 4-6 digit id, skipping values that read
// as years.
func (p *Parser) ExtractEmployeeID(text string) string {
	for _, m := range p.employeeID.FindAllStringSubmatch(text, -1) {
		id := m[1]
		if id[0] == 'E' || id[0] == 'e' {
			id = id[1:]
		}
		if n, err := strconv.Atoi(id); err == nil && n >= 2020 && n <= 2035 {
			continue
		}
		return id
	}
	return ""
}

func (p *Parser) leaveType(lower string) (leave.LeaveType, bool) {
	for _, a := range p.aliases {
		if a.pattern.MatchString(lower) {
			return a.leaveType, true
		}
	}
	return "", false
}

func (p *Parser) dates(lower string, today time.Time) (*time.Time, *time.Time) {
	var found []time.Time
	for _, raw := range p.isoDate.FindAllString(lower, -1) {
		if d, err := leave.ParseDate(raw); err == nil {
			found = append(found, d)
		}
		if len(found) == 2 {
			break
		}
	}

	if len(found) == 0 {
		if m := p.fromTo.FindStringSubmatch(lower); m != nil {
			start, okStart := parseLeadingDate(m[1], today)
			end, okEnd := parseLeadingDate(m[2], today)
			switch {
			case okStart && okEnd:
				found = append(found, start, end)
			case okStart:
				found = append(found, start)
			case okEnd:
				found = append(found, end)
			}
		}
	}

	if len(found) == 0 {
		if m := p.relative.FindString(lower); m != "" {
			if d, ok := parseDatePhrase(m, today); ok {
				found = append(found, d)
			}
		}
	}

	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		start := found[0]
		end := start
		if n := p.requestedDays(lower); n > 1 {
			end = start.AddDate(0, 0, n-1)
		}
		return &start, &end
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Before(found[j]) })
	return &found[0], &found[1]
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

func (p *Parser) requestedDays(lower string) int {
	m := p.dayCount.FindStringSubmatch(lower)
	if m == nil {
		return 0
	}
	if n, ok := numberWords[m[1]]; ok {
		return n
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > 60 {
		return 0
	}
	return n
}

func (p *Parser) reason(text string) string {
	for _, re := range p.reasons {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if reason := p.cleanReason(m[1]); reason != "" {
				return reason
			}
		}
	}
	return ""
}

func (p *Parser) cleanReason(raw string) string {
	lower, offsets := lowerWithOffsets(raw)
	var spans [][]int
	spans = append(spans, p.isoDate.FindAllStringIndex(lower, -1)...)
	spans = append(spans, p.relative.FindAllStringIndex(lower, -1)...)
	spans = append(spans, p.employeeID.FindAllStringIndex(lower, -1)...)
	if m := p.dayCount.FindStringIndex(lower); m != nil {
		spans = append(spans, m)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })

	var b strings.Builder
	pos := 0
	for _, s := range spans {
		start, end := offsets[s[0]], offsets[s[1]]
		if start < pos {
			pos = max(pos, end)
			continue
		}
		b.WriteString(raw[pos:start])
		b.WriteByte(' ')
		pos = end
	}
	b.WriteString(raw[pos:])

	reason := p.spaces.ReplaceAllString(b.String(), " ")
	for {
		trimmed := strings.Trim(reason, " .,;:!-")
		trimmed = p.connectors.ReplaceAllString(trimmed, "")
		if trimmed == reason {
			break
		}
		reason = trimmed
	}
	if !strings.ContainsFunc(reason, isLetter) {
		return ""
	}
	return truncateRunes(reason, maxReasonLength)
}

// lowerWithOffsets lowercases raw rune by rune. offsets[i] is the byte offset in raw of the rune
// that produced byte i of the result, with one trailing entry for len(raw).
func lowerWithOffsets(raw string) (string, []int) {
	var b strings.Builder
	b.Grow(len(raw))
	offsets := make([]int, 0, len(raw)+1)
	for i, r := range raw {
		n := b.Len()
		b.WriteRune(unicode.ToLower(r))
		for ; n < b.Len(); n++ {
			offsets = append(offsets, i)
		}
	}
	offsets = append(offsets, len(raw))
	return b.String(), offsets
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > utf8.RuneSelf
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}

var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday, "sunday": time.Sunday,
}

// Month names match case-insensitively in time.Parse.
var dayMonthLayouts = []string{"2 Jan 2006", "2 January 2006", "Jan 2 2006", "January 2 2006", "2 Jan", "2 January", "Jan 2", "January 2"}

// parseLeadingDate reads a date from the start of s, trying the longest word prefix first so
// "friday because of a wedding" yields friday.
func parseLeadingDate(s string, today time.Time) (time.Time, bool) {
	words := strings.Fields(s)
	for n := min(len(words), 4); n > 0; n-- {
		if d, ok := parseDatePhrase(strings.Join(words[:n], " "), today); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

// parseDatePhrase understands ISO dates, a small set of relative keywords and day-month forms.
// "this <weekday>" is the next such day on or after today; "next <weekday>" is that day in the
// following Monday-based week.
func parseDatePhrase(phrase string, today time.Time) (time.Time, bool) {
	phrase = strings.Trim(strings.ToLower(strings.TrimSpace(phrase)), ".,;:!")
	phrase = strings.TrimPrefix(phrase, "the ")
	phrase = strings.ReplaceAll(phrase, ",", "")

	if d, err := leave.ParseDate(phrase); err == nil {
		return d, true
	}
	switch phrase {
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	case "day after tomorrow":
		return today.AddDate(0, 0, 2), true
	case "next week":
		return mondayOf(today).AddDate(0, 0, 7), true
	}

	words := strings.Fields(phrase)
	switch {
	case len(words) == 1:
		if wd, ok := weekdays[words[0]]; ok {
			return onOrAfter(today, wd), true
		}
	case len(words) == 2 && words[0] == "this":
		if wd, ok := weekdays[words[1]]; ok {
			return onOrAfter(today, wd), true
		}
	case len(words) == 2 && words[0] == "next":
		if wd, ok := weekdays[words[1]]; ok {
			return onOrAfter(mondayOf(today).AddDate(0, 0, 7), wd), true
		}
	}

	cleaned := stripOrdinals(phrase)
	for _, layout := range dayMonthLayouts {
		d, err := time.Parse(layout, cleaned)
		if err != nil {
			continue
		}
		if !strings.Contains(layout, "2006") {
			d = time.Date(today.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		}
		return d, true
	}
	return time.Time{}, false
}

var ordinalSuffix = regexp.MustCompile(`\b(\d{1,2})(st|nd|rd|th)\b`)

func stripOrdinals(s string) string {
	return ordinalSuffix.ReplaceAllString(s, "$1")
}

func mondayOf(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func onOrAfter(d time.Time, wd time.Weekday) time.Time {
	delta := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, delta)
}
