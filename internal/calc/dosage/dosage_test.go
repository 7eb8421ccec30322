package dosage

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalQuantity_BengaliTwiceDaily(t *testing.T) {
	got, err := TotalQuantity("1", "দিনে ২ বার", "৫ দিন")
	require.NoError(t, err)
	assert.Equal(t, 10, got)
}

func TestTotalQuantity(t *testing.T) {
	tests := []struct {
		name                      string
		dose, frequency, duration string
		want                      int
	}{
		{"meal pattern", "1", "১+০+১", "৭ দিন", 14},
		{"three meals english", "1", "1+1+1", "10 days", 30},
		{"half tablet", "½", "BD", "5", 5},
		{"fractional rounds up", "0.5", "TDS", "3 days", 5},
		{"weekly over a month", "1", "সপ্তাহে ১ বার", "১ মাস", 5},
		{"english times a day", "2", "3 times a day", "1 week", 42},
		{"once daily", "1 tablet", "once daily", "2 weeks", 14},
		{"glued unit", "১", "দিনে ৩ বার", "৭দিন", 21},
		{"syrup ml", "5 ml", "thrice daily", "3 d", 45},
		{"latin with dots", "1", "b.d.", "4", 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TotalQuantity(tt.dose, tt.frequency, tt.duration)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want Days
	}{
		{"৫ দিন", 5},
		{"২ সপ্তাহ", 14},
		{"১ মাস", 30},
		{"3 days", 3},
		{"1 week", 7},
		{"2 months", 60},
		{"10", 10},
		{"for 5 days", 5},
		{"1/2 month", 15},
		{"1.5 weeks", 11},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in   string
		want Frequency
	}{
		{"দিনে ২ বার", Frequency{2, 1}},
		{"সপ্তাহে ১ বার", Frequency{1, 7}},
		{"মাসে ১ বার", Frequency{1, 30}},
		{"৩ বেলা", Frequency{3, 1}},
		{"3 times a day", Frequency{3, 1}},
		{"2 times/day", Frequency{2, 1}},
		{"1 time per week", Frequency{1, 7}},
		{"twice daily", Frequency{2, 1}},
		{"once weekly", Frequency{1, 7}},
		{"OD", Frequency{1, 1}},
		{"QID", Frequency{4, 1}},
		{"০+০+১", Frequency{1, 1}},
		{"½+0+½", Frequency{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		field string
		fn    func() error
	}{
		{"empty duration", "duration", func() error { _, err := ParseDuration(""); return err }},
		{"word duration", "duration", func() error { _, err := ParseDuration("কিছুদিন"); return err }},
		{"unknown unit", "duration", func() error { _, err := ParseDuration("5 years"); return err }},
		{"zero duration", "duration", func() error { _, err := ParseDuration("0 days"); return err }},
		{"garbage frequency", "frequency", func() error { _, err := ParseFrequency("as needed"); return err }},
		{"zero pattern", "frequency", func() error { _, err := ParseFrequency("0+0+0"); return err }},
		{"double period", "frequency", func() error { _, err := ParseFrequency("daily 2 times a week"); return err }},
		{"no count", "frequency", func() error { _, err := ParseFrequency("দিনে বার"); return err }},
		{"text dose", "dose", func() error { _, err := ParseDose("some"); return err }},
		{"zero dose", "dose", func() error { _, err := ParseDose("0"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnparseable))

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}

func TestTotalQuantity_NeverSilentZero(t *testing.T) {
	_, err := TotalQuantity("1", "sometimes", "5 days")
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestRefillDate(t *testing.T) {
	today := time.Date(2024, 3, 10, 15, 45, 0, 0, time.UTC)

	got, err := RefillDate("৩০ দিন", today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 9, 0, 0, 0, 0, time.UTC), got)
}

func TestNextRefillDate(t *testing.T) {
	today := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	got, ok, err := NextRefillDate([]string{"৫ দিন", "", "২ সপ্তাহ", "10"}, today)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got)

	_, ok, err = NextRefillDate([]string{"", "  "}, today)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = NextRefillDate([]string{"5 days", "soon"}, today)
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestCalculate(t *testing.T) {
	today := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	res, err := Calculate("1", "১+১+১", "৭ দিন", today)
	require.NoError(t, err)
	assert.Equal(t, 21, res.TotalQuantity)
	assert.Equal(t, 7, res.DurationDays)
	assert.Equal(t, time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC), res.RefillDate)
}

func TestFrequency_PerDay(t *testing.T) {
	assert.InDelta(t, 2.0, Frequency{Times: 2, PeriodDays: 1}.PerDay(), 1e-9)
	assert.InDelta(t, 1.0/7, Frequency{Times: 1, PeriodDays: 7}.PerDay(), 1e-9)
	assert.Zero(t, Frequency{}.PerDay())
}

func TestParseBounds(t *testing.T) {
	tests := []struct {
		name  string
		field string
		fn    func() error
	}{
		{"huge dose", "dose", func() error { _, err := ParseDose("99999999999999999999"); return err }},
		{"dose above limit", "dose", func() error { _, err := ParseDose("1001 ml"); return err }},
		{"huge duration", "duration", func() error { _, err := ParseDuration("9999999 days"); return err }},
		{"duration in months above limit", "duration", func() error { _, err := ParseDuration("122 months"); return err }},
		{"huge count", "frequency", func() error { _, err := ParseFrequency("500 times a day"); return err }},
		{"huge pattern", "frequency", func() error { _, err := ParseFrequency("500+0+500"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			require.ErrorIs(t, err, ErrUnparseable)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.field, pe.Field)
			assert.Equal(t, "too large", pe.Reason)
		})
	}
}

func TestParseBounds_LimitsAccepted(t *testing.T) {
	d, err := ParseDose("1000")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, d)

	days, err := ParseDuration("3650 days")
	require.NoError(t, err)
	assert.Equal(t, Days(MaxDurationDays), days)
}

func TestTotalQuantity_HugeDoseIsError(t *testing.T) {
	qty, err := TotalQuantity("99999999999999999999", "BD", "5 days")
	assert.ErrorIs(t, err, ErrUnparseable)
	assert.Zero(t, qty)
}

func TestRefillDate_StaysEncodable(t *testing.T) {
	today := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := RefillDate("9999999 days", today)
	require.ErrorIs(t, err, ErrUnparseable)

	got, err := RefillDate("3650 days", today)
	require.NoError(t, err)
	_, err = json.Marshal(got)
	assert.NoError(t, err)
}

func TestQuantity_DoesNotWrap(t *testing.T) {
	got := Quantity(1e300, Frequency{Times: 1e300, PeriodDays: 1}, 10)
	assert.Equal(t, math.MaxInt32, got)
	assert.Zero(t, Quantity(-5, Frequency{Times: 1, PeriodDays: 1}, 10))
}
