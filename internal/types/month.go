// Package types implements special types for the ledgerplan backend.
package types

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Month is a month in a specific year.
type Month time.Time

// NewMonth returns a new Month.
func NewMonth(year int, month time.Month) Month {
	return Month(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
}

// MonthOf returns the Month in which a time occurs.
func MonthOf(t time.Time) Month {
	year, month, _ := t.UTC().Date()
	return NewMonth(year, month)
}

// ParseMonth parses a "YYYY-MM" string and returns the Month value it represents.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, err
	}

	return MonthOf(t), nil
}

// String returns the month formatted as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", time.Time(m).Year(), time.Time(m).Month())
}

// Time returns the first day of the month at 00:00 UTC.
func (m Month) Time() time.Time {
	year, month, _ := time.Time(m).Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// MarshalJSON implements the json.Marshaler interface.
func (m Month) MarshalJSON() ([]byte, error) {
	return m.Time().MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface.
// Accepted formats are RFC3339 timestamps, "2006-01-02" dates and
// "2006-01" months. Everything except the year and month is ignored.
func (m *Month) UnmarshalJSON(data []byte) error {
	value := strings.Trim(string(data), `"`)
	if value == "" || value == "null" {
		return nil
	}

	var t time.Time
	var err error
	for _, pattern := range []string{time.RFC3339, "2006-01-02", "2006-01"} {
		t, err = time.Parse(pattern, value)
		if err == nil {
			break
		}
	}
	if err != nil {
		return err
	}

	*m = MonthOf(t)
	return nil
}

// Scan reads the value from the database.
func (m *Month) Scan(value interface{}) (err error) {
	nullTime := &sql.NullTime{}
	err = nullTime.Scan(value)
	*m = MonthOf(nullTime.Time)
	return err
}

// Value returns the value for the SQL driver to write to the database.
func (m Month) Value() (driver.Value, error) {
	return m.Time(), nil
}

// GormDataType defines the data type used by gorm for the type.
func (Month) GormDataType() string {
	return "date"
}

// IsZero reports if the month is the zero value.
func (m Month) IsZero() bool {
	return time.Time(m).IsZero()
}

// AddDate adds a specified amount of years and months.
func (m Month) AddDate(years, months int) Month {
	return Month(m.Time().AddDate(years, months, 0))
}

// Before reports whether the month instant m is before n.
func (m Month) Before(n Month) bool {
	return m.Time().Before(n.Time())
}

// After reports whether the month instant m is after n.
func (m Month) After(n Month) bool {
	return m.Time().After(n.Time())
}

// Equal reports whether m and n represent the same month.
func (m Month) Equal(n Month) bool {
	return m.Time().Equal(n.Time())
}

// Contains reports whether the time instant is in the month.
func (m Month) Contains(t time.Time) bool {
	return t.UTC().Year() == m.Time().Year() && t.UTC().Month() == m.Time().Month()
}

// MonthsBetween returns the number of calendar months from m to n inclusive.
// A range from a month to itself counts as one month. The minimum returned
// value is 1, even when n is before m.
func MonthsBetween(m, n Month) int {
	from := m.Time()
	until := n.Time()

	months := (until.Year()*12 + int(until.Month())) - (from.Year()*12 + int(from.Month())) + 1
	if months < 1 {
		return 1
	}

	return months
}
