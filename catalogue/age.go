package catalogue

import (
	"fmt"
	"time"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// Age computes whole years elapsed since the date stored in field.
func Age(field string, now func() time.Time) AttributeFunc {
	return func(record Record) (any, error) {
		raw, ok := record[field]
		if !ok || raw == nil {
			return nil, nil
		}
		var dob time.Time
		switch v := raw.(type) {
		case time.Time:
			dob = v
		case string:
			var err error
			dob, err = parseDate(v)
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("field %s is not a date: %T", field, raw)
		}
		today := now()
		years := today.Year() - dob.Year()
		if today.Month() < dob.Month() || (today.Month() == dob.Month() && today.Day() < dob.Day()) {
			years--
		}
		return years, nil
	}
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
