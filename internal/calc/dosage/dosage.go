// Package dosage reads free-text prescription instructions (Bengali or
// English) and derives dispense quantities and refill dates.
//
// Accepted forms:
//
//	dose:      "1", "½", "1.5 tablet", "৫ ml"
//	frequency: "দিনে ২ বার", "সপ্তাহে ১ বার", "3 times a day", "১+০+১", "BD", "twice daily"
//	duration:  "৫ দিন", "2 weeks", "১ মাস", "10"
//
// Text that does not match yields a *ParseError rather than zero.
package dosage

import (
	"math"
	"strings"
	"time"
)

// Days is a duration expressed in whole calendar days.
type Days int

// Upper bounds on parsed values. Larger inputs are treated as typos.
const (
	MaxDose         = 1000
	MaxDurationDays = 3650
)

// Frequency is Times administrations every PeriodDays days.
type Frequency struct {
	Times      float64 `json:"times"`
	PeriodDays int     `json:"period_days"`
}

// PerDay returns the average administrations per day.
func (f Frequency) PerDay() float64 {
	if f.PeriodDays <= 0 {
		return 0
	}
	return f.Times / float64(f.PeriodDays)
}

var durationUnits = map[string]int{
	"দিন": 1, "দিনের": 1, "day": 1, "days": 1, "d": 1,
	"সপ্তাহ": 7, "সপ্তাহের": 7, "week": 7, "weeks": 7, "w": 7, "wk": 7, "wks": 7,
	"মাস": 30, "মাসের": 30, "month": 30, "months": 30, "m": 30, "mo": 30,
}

var periodWords = map[string]int{
	"দিনে": 1, "প্রতিদিন": 1, "দৈনিক": 1, "day": 1, "daily": 1, "দিন": 1,
	"সপ্তাহে": 7, "সাপ্তাহিক": 7, "week": 7, "weekly": 7, "সপ্তাহ": 7,
	"মাসে": 30, "মাসিক": 30, "month": 30, "monthly": 30, "মাস": 30,
}

// maxTimes bounds administrations per period.
const maxTimes = 100

var countWords = map[string]float64{
	"once": 1, "twice": 2, "thrice": 3,
}

var abbreviations = map[string]Frequency{
	"od":  {Times: 1, PeriodDays: 1},
	"qd":  {Times: 1, PeriodDays: 1},
	"hs":  {Times: 1, PeriodDays: 1},
	"bd":  {Times: 2, PeriodDays: 1},
	"bid": {Times: 2, PeriodDays: 1},
	"tds": {Times: 3, PeriodDays: 1},
	"tid": {Times: 3, PeriodDays: 1},
	"qid": {Times: 4, PeriodDays: 1},
	"qds": {Times: 4, PeriodDays: 1},
}

// filler words carry no information in a frequency phrase
var frequencyFiller = map[string]bool{
	"times": true, "time": true, "x": true, "বার": true, "বেলা": true,
	"a": true, "per": true, "every": true, "each": true, "/": true, "in": true,
}

// ParseDuration reads "<number> <unit>" or a bare number of days.
func ParseDuration(s string) (Days, error) {
	const field = "duration"
	n := strings.TrimPrefix(normalize(s), "for ")
	if n == "" {
		return 0, parseErr(field, s, "empty")
	}
	num, unit := splitNumber(n)
	v, ok := parseNumber(num)
	if !ok {
		return 0, parseErr(field, s, "no leading number")
	}
	mult := 1
	if unit != "" {
		m, ok := durationUnits[unit]
		if !ok {
			return 0, parseErr(field, s, "unknown unit "+unit)
		}
		mult = m
	}
	total := v * float64(mult)
	if total > MaxDurationDays {
		return 0, parseErr(field, s, "too large")
	}
	days := ceil(total)
	if days <= 0 {
		return 0, parseErr(field, s, "must be positive")
	}
	return Days(days), nil
}

// ParseFrequency reads the administration schedule.
func ParseFrequency(s string) (Frequency, error) {
	const field = "frequency"
	n := normalize(s)
	if n == "" {
		return Frequency{}, parseErr(field, s, "empty")
	}

	if f, ok := abbreviations[strings.ReplaceAll(n, ".", "")]; ok {
		return f, nil
	}

	if strings.Contains(n, "+") {
		return parseMealPattern(s, n)
	}

	tokens := strings.Fields(strings.ReplaceAll(n, "/", " / "))
	var (
		times    float64
		haveTime bool
		period   int
	)
	for _, tok := range tokens {
		if frequencyFiller[tok] {
			continue
		}
		if p, ok := periodWords[tok]; ok {
			if period != 0 {
				return Frequency{}, parseErr(field, s, "period given twice")
			}
			period = p
			continue
		}
		v, ok := countWords[tok]
		if !ok {
			num, rest := splitNumber(tok)
			if rest != "" && rest != "x" {
				return Frequency{}, parseErr(field, s, "unexpected word "+tok)
			}
			v, ok = parseNumber(num)
			if !ok {
				return Frequency{}, parseErr(field, s, "unexpected word "+tok)
			}
		}
		if haveTime {
			return Frequency{}, parseErr(field, s, "count given twice")
		}
		times, haveTime = v, true
	}
	if !haveTime || times <= 0 {
		return Frequency{}, parseErr(field, s, "no administration count")
	}
	if times > maxTimes {
		return Frequency{}, parseErr(field, s, "too large")
	}
	if period == 0 {
		period = 1
	}
	return Frequency{Times: times, PeriodDays: period}, nil
}

// parseMealPattern reads "a+b+c" where each part is the dose count at one
// meal time. The sum is the daily count.
func parseMealPattern(raw, n string) (Frequency, error) {
	var total float64
	for _, part := range strings.Split(n, "+") {
		v, ok := parseNumber(strings.TrimSpace(part))
		if !ok {
			return Frequency{}, parseErr("frequency", raw, "bad pattern part "+part)
		}
		total += v
	}
	if total <= 0 {
		return Frequency{}, parseErr("frequency", raw, "pattern sums to zero")
	}
	if total > maxTimes {
		return Frequency{}, parseErr("frequency", raw, "too large")
	}
	return Frequency{Times: total, PeriodDays: 1}, nil
}

// ParseDose reads a positive amount optionally followed by a unit word.
func ParseDose(s string) (float64, error) {
	n := normalize(s)
	if n == "" {
		return 0, parseErr("dose", s, "empty")
	}
	num, _ := splitNumber(n)
	v, ok := parseNumber(num)
	if !ok || v <= 0 {
		return 0, parseErr("dose", s, "no positive amount")
	}
	if v > MaxDose {
		return 0, parseErr("dose", s, "too large")
	}
	return v, nil
}

// TotalQuantity returns ceil(dose × times × ceil(days / periodDays)).
func TotalQuantity(dose, frequency, duration string) (int, error) {
	d, err := ParseDose(dose)
	if err != nil {
		return 0, err
	}
	f, err := ParseFrequency(frequency)
	if err != nil {
		return 0, err
	}
	days, err := ParseDuration(duration)
	if err != nil {
		return 0, err
	}
	return Quantity(d, f, days), nil
}

// Quantity computes the dispense count from already parsed values.
func Quantity(dose float64, f Frequency, days Days) int {
	if f.PeriodDays <= 0 {
		return 0
	}
	periods := math.Ceil(float64(days) / float64(f.PeriodDays))
	return ceil(dose * f.Times * periods)
}

// RefillDate is today's calendar date plus the duration.
func RefillDate(duration string, today time.Time) (time.Time, error) {
	days, err := ParseDuration(duration)
	if err != nil {
		return time.Time{}, err
	}
	return addDays(today, days), nil
}

// NextRefillDate uses the longest duration across medicines. Blank durations
// are skipped; ok is false when none remain.
func NextRefillDate(durations []string, today time.Time) (time.Time, bool, error) {
	var longest Days
	for _, s := range durations {
		if strings.TrimSpace(s) == "" {
			continue
		}
		days, err := ParseDuration(s)
		if err != nil {
			return time.Time{}, false, err
		}
		if days > longest {
			longest = days
		}
	}
	if longest == 0 {
		return time.Time{}, false, nil
	}
	return addDays(today, longest), true, nil
}

// Result is the outcome of a single-medicine calculation.
type Result struct {
	Dose          float64   `json:"dose"`
	Frequency     Frequency `json:"frequency"`
	DurationDays  int       `json:"duration_days"`
	TotalQuantity int       `json:"total_quantity"`
	RefillDate    time.Time `json:"refill_date"`
}

// Calculate parses all three fields and derives quantity and refill date.
func Calculate(dose, frequency, duration string, today time.Time) (Result, error) {
	d, err := ParseDose(dose)
	if err != nil {
		return Result{}, err
	}
	f, err := ParseFrequency(frequency)
	if err != nil {
		return Result{}, err
	}
	days, err := ParseDuration(duration)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Dose:          d,
		Frequency:     f,
		DurationDays:  int(days),
		TotalQuantity: Quantity(d, f, days),
		RefillDate:    addDays(today, days),
	}, nil
}

func addDays(t time.Time, days Days) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, int(days))
}

// ceil tolerates float noise such as 0.1*3 = 0.30000000000000004. Out of range
// values clamp to [0, MaxInt32] instead of wrapping.
func ceil(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	c := math.Ceil(v - 1e-9)
	if c > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(c)
}
