package state

import "time"

// parseRAUntil parses the ISO-8601 UTC timestamp stored at __ra_until__
// into unix seconds.
func parseRAUntil(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
