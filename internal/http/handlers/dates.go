package handlers

import "time"

const dateLayout = "2006-01-02"

// parseDate accepts plain calendar dates and full RFC3339 timestamps;
// operational dates are day-granular so the plain form is the common one.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// parseDatePtr maps an absent or empty field to nil.
func parseDatePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
