package table

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrUnknownType is returned by DecodeFormat for an unrecognised type tag.
var ErrUnknownType = errors.New("unknown column type")

// Format carries the parameters needed to render one column type.
// The set of implementations is closed.
type Format interface {
	Kind() Type
	isFormat()
}

type (
	TextFormat struct{}

	// NumberFormat follows the "{minInt}-{minFrac}-{maxFrac}" digit-info
	// convention.
	NumberFormat struct {
		MinInt  int
		MinFrac int
		MaxFrac int
	}

	IntegerFormat struct{}

	// PercentFormat scales values <= 1 by 100 when AsDecimal is set.
	PercentFormat struct {
		AsDecimal bool
		MinFrac   int
		MaxFrac   int
	}

	// MoneyFormat renders currency and money columns.
	MoneyFormat struct {
		Type    Type
		Symbol  string
		MinFrac int
		MaxFrac int
	}

	DateFormat     struct{}
	DateTimeFormat struct{}
	TimeFormat     struct{}

	// LinkFormat renders a link; Href may contain {value}.
	LinkFormat struct {
		Href string
	}

	BadgeFormat    struct{}
	ProgressFormat struct{}
	HTMLFormat     struct{}

	// IconFormat names the record fields holding the icon class, colour
	// and title.
	IconFormat struct {
		ClassField string
		ColorField string
		TitleField string
	}

	BooleanFormat struct{}
)

func (TextFormat) Kind() Type     { return TypeText }
func (NumberFormat) Kind() Type   { return TypeNumber }
func (IntegerFormat) Kind() Type  { return TypeInteger }
func (PercentFormat) Kind() Type  { return TypePercent }
func (f MoneyFormat) Kind() Type  { return f.Type }
func (DateFormat) Kind() Type     { return TypeDate }
func (DateTimeFormat) Kind() Type { return TypeDateTime }
func (TimeFormat) Kind() Type     { return TypeTime }
func (LinkFormat) Kind() Type     { return TypeLink }
func (BadgeFormat) Kind() Type    { return TypeBadge }
func (ProgressFormat) Kind() Type { return TypeProgress }
func (HTMLFormat) Kind() Type     { return TypeHTML }
func (IconFormat) Kind() Type     { return TypeIcon }
func (BooleanFormat) Kind() Type  { return TypeBoolean }

func (TextFormat) isFormat()     {}
func (NumberFormat) isFormat()   {}
func (IntegerFormat) isFormat()  {}
func (PercentFormat) isFormat()  {}
func (MoneyFormat) isFormat()    {}
func (DateFormat) isFormat()     {}
func (DateTimeFormat) isFormat() {}
func (TimeFormat) isFormat()     {}
func (LinkFormat) isFormat()     {}
func (BadgeFormat) isFormat()    {}
func (ProgressFormat) isFormat() {}
func (HTMLFormat) isFormat()     {}
func (IconFormat) isFormat()     {}
func (BooleanFormat) isFormat()  {}

// DecodeFormat turns a type tag and its free-form options into a Format.
func DecodeFormat(t Type, opts Options) (Format, error) {
	switch t {
	case TypeText, "":
		return TextFormat{}, nil
	case TypeNumber:
		f := NumberFormat{MinInt: 1, MinFrac: 2, MaxFrac: 2}
		if di, ok := opts.str("digitInfo", "digit_info"); ok {
			minInt, minFrac, maxFrac, err := parseDigitInfo(di)
			if err != nil {
				return nil, err
			}
			f = NumberFormat{MinInt: minInt, MinFrac: minFrac, MaxFrac: maxFrac}
		}
		return f, nil
	case TypeInteger:
		return IntegerFormat{}, nil
	case TypePercent:
		f := PercentFormat{MinFrac: 0, MaxFrac: 2}
		f.AsDecimal = opts.boolean("asDecimal", "as_decimal")
		if di, ok := opts.str("digitInfo", "digit_info"); ok {
			_, minFrac, maxFrac, err := parseDigitInfo(di)
			if err != nil {
				return nil, err
			}
			f.MinFrac, f.MaxFrac = minFrac, maxFrac
		}
		return f, nil
	case TypeCurrency, TypeMoney:
		f := MoneyFormat{Type: t, Symbol: "$", MinFrac: 2, MaxFrac: 2}
		if sym, ok := opts.str("symbol", "currency"); ok {
			f.Symbol = sym
		}
		if di, ok := opts.str("digitInfo", "digit_info"); ok {
			_, minFrac, maxFrac, err := parseDigitInfo(di)
			if err != nil {
				return nil, err
			}
			f.MinFrac, f.MaxFrac = minFrac, maxFrac
		}
		return f, nil
	case TypeDate:
		return DateFormat{}, nil
	case TypeDateTime:
		return DateTimeFormat{}, nil
	case TypeTime:
		return TimeFormat{}, nil
	case TypeLink:
		href, _ := opts.str("href")
		return LinkFormat{Href: href}, nil
	case TypeBadge:
		return BadgeFormat{}, nil
	case TypeProgress:
		return ProgressFormat{}, nil
	case TypeHTML:
		return HTMLFormat{}, nil
	case TypeIcon:
		f := IconFormat{}
		f.ClassField, _ = opts.str("class_field", "clave_class")
		f.ColorField, _ = opts.str("color_field", "clave_color")
		f.TitleField, _ = opts.str("title_field", "clave_title")
		return f, nil
	case TypeBoolean:
		return BooleanFormat{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

// parseDigitInfo parses "{minInt}-{minFrac}-{maxFrac}". Missing parts
// default to 1, 0 and 2.
func parseDigitInfo(s string) (minInt, minFrac, maxFrac int, err error) {
	minInt, minFrac, maxFrac = 1, 0, 2
	parts := strings.Split(strings.TrimSpace(s), "-")
	dst := []*int{&minInt, &minFrac, &maxFrac}
	for i, p := range parts {
		if i >= len(dst) {
			return 0, 0, 0, fmt.Errorf("digit info %q: too many parts", s)
		}
		if p == "" {
			continue
		}
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 0 {
			return 0, 0, 0, fmt.Errorf("digit info %q: invalid part %q", s, p)
		}
		*dst[i] = n
	}
	if minFrac > maxFrac {
		maxFrac = minFrac
	}
	return minInt, minFrac, maxFrac, nil
}

func (o Options) lookup(names ...string) (any, bool) {
	for _, n := range names {
		if v, ok := o[n]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (o Options) str(names ...string) (string, bool) {
	v, ok := o.lookup(names...)
	if !ok {
		return "", false
	}
	s := stringify(v)
	return s, s != ""
}

func (o Options) boolean(names ...string) bool {
	v, ok := o.lookup(names...)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(b)
		return parsed
	}
	return false
}

// FormatValue renders value as a column of type t with the given options.
// Unknown types render as text.
func FormatValue(value any, t Type, opts Options) string {
	if parsed, ok := ParseType(string(t)); ok {
		t = parsed
	}
	f, err := DecodeFormat(t, opts)
	if err != nil {
		f = TextFormat{}
	}
	return Render(value, f)
}

// Render formats a value for display. Blank values render as "" for every
// format, and values a format cannot handle come back in plain string form.
func Render(value any, f Format) (out string) {
	if isBlank(value) {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			out = stringify(value)
		}
	}()

	switch f := f.(type) {
	case NumberFormat:
		n, ok := parseNumber(value)
		if !ok {
			return stringify(value)
		}
		return formatDecimal(n, f.MinFrac, f.MaxFrac)
	case IntegerFormat:
		n, ok := parseNumber(value)
		if !ok {
			return stringify(value)
		}
		return formatDecimal(math.Trunc(n), 0, 0)
	case PercentFormat:
		n, ok := parseNumber(value)
		if !ok {
			return stringify(value)
		}
		if f.AsDecimal && n <= 1 {
			n *= 100
		}
		return formatDecimal(n, f.MinFrac, f.MaxFrac) + "%"
	case MoneyFormat:
		n, ok := parseNumber(value)
		if !ok {
			return stringify(value)
		}
		return f.Symbol + " " + formatDecimal(n, f.MinFrac, f.MaxFrac)
	case DateFormat:
		if t, ok := parseTime(value); ok {
			return t.Format("02/01/2006")
		}
		return stringify(value)
	case DateTimeFormat:
		if t, ok := parseTime(value); ok {
			return t.Format("02/01/2006, 15:04")
		}
		return stringify(value)
	case TimeFormat:
		if t, ok := parseTime(value); ok {
			return t.Format("15:04")
		}
		return stringify(value)
	}
	return stringify(value)
}

const maxFractionDigits = 9

// formatDecimal groups thousands with "." and separates decimals with ",".
// It shows at least minFrac and at most maxFrac fraction digits.
func formatDecimal(n float64, minFrac, maxFrac int) string {
	maxFrac = min(max(maxFrac, 0), maxFractionDigits)
	minFrac = min(max(minFrac, 0), maxFrac)

	var s string
	scale := math.Pow10(maxFrac)
	rounded := math.Round(n*scale) / scale
	if math.Abs(n) < 1<<53 && !math.IsInf(rounded, 0) {
		s = humanize.FormatFloat("#.###,"+strings.Repeat("#", maxFrac), rounded)
	} else {
		// humanize goes through int64 and would wrap.
		s = groupDigits(strconv.FormatFloat(n, 'f', maxFrac, 64))
	}

	if maxFrac == minFrac {
		return s
	}
	sep := strings.LastIndexByte(s, ',')
	if sep < 0 {
		return s
	}
	frac := s[sep+1:]
	for len(frac) > minFrac && strings.HasSuffix(frac, "0") {
		frac = frac[:len(frac)-1]
	}
	if frac == "" {
		return s[:sep]
	}
	return s[:sep+1] + frac
}

// groupDigits turns strconv's "-1234567.50" into "-1.234.567,50".
func groupDigits(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	if hasFrac {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}

var isoDatePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

var otherLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	"02/01/2006 15:04",
	"02/01/2006",
}

// parseTime reads time values, epoch milliseconds and date strings.
// Values keep the wall clock they carry: a string with an offset renders in
// that offset, one without a zone is read as UTC, and epoch milliseconds are
// UTC.
func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		if isoDatePrefix.MatchString(s) {
			for _, layout := range isoLayouts {
				if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
					return parsed, true
				}
			}
			// "2024-13-45" fails here and renders raw.
			parsed, err := time.ParseInLocation("2006-01-02", s[:10], time.UTC)
			return parsed, err == nil
		}
		for _, layout := range otherLayouts {
			if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	}
	if ms, ok := asNumber(v); ok && !math.IsNaN(ms) && !math.IsInf(ms, 0) {
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	return time.Time{}, false
}
