package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Date is a UTC calendar day. Its JSON form is "2006-01-02"; full RFC 3339
// timestamps are accepted on input and truncated to their day.
type Date struct {
	time.Time
}

func DateOf(t time.Time) Date {
	return Date{Time: truncateDay(t)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if raw == "" {
		*d = Date{}
		return nil
	}
	if t, err := time.Parse(DateLayout, raw); err == nil {
		*d = Date{Time: t}
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("date %q: want YYYY-MM-DD", raw)
	}
	*d = DateOf(t)
	return nil
}
