// Package legacy normalizes the date and number encodings of the Globus
// Oracle source. Nothing here returns an error: unusable input becomes nil
// for dates and zero for numbers.
package legacy

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NoDateYear is the year of the source's "no date" sentinel 30/12/1899.
const NoDateYear = 1899

var (
	brDate    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})(?:[ T](\d{1,2}):(\d{1,2})(?::(\d{1,2}))?)?$`)
	numPrefix = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
	intPrefix = regexp.MustCompile(`^[+-]?\d+`)

	isoLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04",
		time.DateOnly,
	}
)

// Parser interprets wall-clock values in Loc.
type Parser struct {
	Loc *time.Location
}

// Default is used by the package-level helpers.
var Default = Parser{Loc: defaultLocation()}

func defaultLocation() *time.Location {
	if loc, err := time.LoadLocation("America/Sao_Paulo"); err == nil {
		return loc
	}
	return time.Local
}

func ParseDate(v any) *time.Time { return Default.ParseDate(v) }
func ParseNumber(v any) float64 { return Default.ParseNumber(v) }
func ParseInt(v any) int { return Default.ParseInt(v) }
func ParseMoney(v any) decimal.Decimal { return Default.ParseMoney(v) }
func ParseString(v any) *string { return Default.ParseString(v) }

// ParseDate accepts time values, DD/MM/YYYY [HH:MM[:SS]] strings, ISO-8601
// strings and epoch milliseconds.
func (p Parser) ParseDate(v any) (out *time.Time) {
	defer func() {
		if recover() != nil {
			out = nil
		}
	}()
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return keep(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return keep(*x)
	case []byte:
		return p.parseDateString(string(x))
	case string:
		return p.parseDateString(x)
	case int:
		return p.epoch(float64(x))
	case int32:
		return p.epoch(float64(x))
	case int64:
		return p.epoch(float64(x))
	case float64:
		return p.epoch(x)
	case float32:
		return p.epoch(float64(x))
	}
	return nil
}

func keep(t time.Time) *time.Time {
	if t.IsZero() || t.Year() == NoDateYear {
		return nil
	}
	return &t
}

func (p Parser) epoch(ms float64) *time.Time {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return nil
	}
	return keep(time.UnixMilli(int64(ms)).In(p.loc()))
}

func (p Parser) loc() *time.Location {
	if p.Loc == nil {
		return time.Local
	}
	return p.Loc
}

func (p Parser) parseDateString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "1899") {
		return nil
	}
	if strings.Contains(s, "/") {
		return p.parseBR(s)
	}
	for _, layout := range isoLayouts {
		t, err := time.ParseInLocation(layout, s, p.loc())
		if err == nil {
			return keep(t)
		}
	}
	return nil
}

func (p Parser) parseBR(s string) *time.Time {
	m := brDate.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	num := func(i int) int {
		if m[i] == "" {
			return 0
		}
		n, _ := strconv.Atoi(m[i])
		return n
	}
	d, mo, y := num(1), num(2), num(3)
	h, mi, sec := num(4), num(5), num(6)
	if d < 1 || d > 31 || mo < 1 || mo > 12 || y < 1900 || y > 2100 {
		return nil
	}
	if h > 23 || mi > 59 || sec > 59 {
		return nil
	}
	t := time.Date(y, time.Month(mo), d, h, mi, sec, 0, p.loc())
	// time.Date normalizes 31/04 into 01/05; reject instead
	if t.Day() != d || int(t.Month()) != mo || t.Year() != y {
		return nil
	}
	return &t
}

// ParseNumber reads the leading numeric prefix of v, treating the first comma
// as the decimal separator. Empty or unparseable input yields 0.
func (p Parser) ParseNumber(v any) (out float64) {
	defer func() {
		if recover() != nil {
			out = 0
		}
	}()
	var f float64
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case decimal.Decimal:
		f = x.InexactFloat64()
	case []byte:
		f = parseFloatPrefix(string(x))
	case string:
		f = parseFloatPrefix(x)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseFloatPrefix(s string) float64 {
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	lead := numPrefix.FindString(s)
	if lead == "" {
		return 0
	}
	f, err := strconv.ParseFloat(lead, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseInt reads the leading integer of v; anything else yields 0.
func (p Parser) ParseInt(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case string:
		return parseIntPrefix(x)
	case []byte:
		return parseIntPrefix(string(x))
	}
	f := p.ParseNumber(v)
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return int(f)
}

func parseIntPrefix(s string) int {
	n, err := strconv.Atoi(intPrefix.FindString(strings.TrimSpace(s)))
	if err != nil {
		return 0
	}
	return n
}

// ParseMoney is ParseNumber rounded to cents.
func (p Parser) ParseMoney(v any) decimal.Decimal {
	if d, ok := v.(decimal.Decimal); ok {
		return d.Round(2)
	}
	return decimal.NewFromFloat(p.ParseNumber(v)).Round(2)
}

// ParseString trims v; blank values become nil.
func (p Parser) ParseString(v any) *string {
	var s string
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		s = x
	case []byte:
		s = string(x)
	case int, int32, int64:
		s = strconv.FormatInt(int64(p.ParseInt(x)), 10)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case decimal.Decimal:
		s = x.String()
	case time.Time:
		s = x.Format(time.RFC3339)
	default:
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
