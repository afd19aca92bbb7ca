package stats

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/robalyx/vaultstats/internal/vaultwarden"
)

// accessor reads one candidate field from a user record.
type accessor struct {
	name string
	get  func(vaultwarden.UserRecord) (any, bool)
}

func field(name string) accessor {
	return accessor{
		name: name,
		get: func(r vaultwarden.UserRecord) (any, bool) {
			return r.Lookup(name)
		},
	}
}

// lastActiveAccessors lists last-activity fields in priority order.
//
//   - lastActive:  /admin/users JSON, formatted "2006-01-02 15:04:05 <zone>"
//   - _LastActive: older builds exposing the raw timestamp, ISO-8601
//   - last_active: snake_case exports
var lastActiveAccessors = []accessor{
	field("lastActive"),
	field("_LastActive"),
	field("last_active"),
}

// itemCountAccessors lists per-user vault item count fields in priority order.
// Current releases do not include a count in /admin/users; these cover builds
// and proxies that add one.
var itemCountAccessors = []accessor{
	field("cipherCount"),
	field("CipherCount"),
	field("cipher_count"),
	field("itemCount"),
}

var (
	errUnexpectedType = errors.New("unexpected value type")
	errBadTimestamp   = errors.New("unrecognised timestamp format")
	errBadCount       = errors.New("not a non-negative integer")
)

// spaceLayout is the admin API timestamp without its trailing zone suffix.
const spaceLayout = "2006-01-02 15:04:05"

// Derive computes statistics from a user list as of now.
// It never fails: values that cannot be used are reported as warnings and
// the record still counts toward the total.
func Derive(records []vaultwarden.UserRecord, now time.Time) (Snapshot, []Warning) {
	var (
		warnings   []Warning
		active     int
		totalItems int
		hasItems   bool
	)

	cutoff := now.Add(-ActiveWindow)

	for i, record := range records {
		if name, raw, ok := resolve(record, lastActiveAccessors); ok {
			lastActive, err := parseTimestamp(raw)
			switch {
			case err != nil:
				warnings = append(warnings, newWarning(i, record, name, raw, err))
			case lastActive.After(cutoff):
				active++
			}
		}

		if name, raw, ok := resolve(record, itemCountAccessors); ok {
			hasItems = true

			count, err := parseCount(raw)
			if err != nil {
				warnings = append(warnings, newWarning(i, record, name, raw, err))
				continue
			}
			totalItems += count
		}
	}

	snapshot := Snapshot{
		TotalUsers:  len(records),
		ActiveUsers: active,
		FetchedAt:   now,
	}
	if hasItems {
		snapshot.TotalItems = &totalItems
	}

	return snapshot, warnings
}

// resolve returns the first accessor whose value is present and non-empty.
func resolve(record vaultwarden.UserRecord, accessors []accessor) (string, any, bool) {
	for _, a := range accessors {
		v, ok := a.get(record)
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return a.name, v, true
	}
	return "", nil, false
}

// parseTimestamp accepts ISO-8601 with a Z or numeric offset, and the admin
// API's "YYYY-MM-DD HH:MM:SS <zone>" form whose zone suffix is dropped and
// read as UTC.
func parseTimestamp(raw any) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %T", errUnexpectedType, raw)
	}
	s = strings.TrimSpace(s)

	if t, err := iso8601.ParseString(s); err == nil {
		return t, nil
	}

	parts := strings.Fields(s)
	if len(parts) < 2 || len(parts) > 3 {
		return time.Time{}, errBadTimestamp
	}

	t, err := time.ParseInLocation(spaceLayout, parts[0]+" "+parts[1], time.UTC)
	if err != nil {
		return time.Time{}, errBadTimestamp
	}
	return t, nil
}

// parseCount accepts JSON numbers and numeric strings.
func parseCount(raw any) (int, error) {
	switch v := raw.(type) {
	case float64:
		if v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
			return 0, errBadCount
		}
		return int(v), nil
	case int:
		if v < 0 {
			return 0, errBadCount
		}
		return v, nil
	case int64:
		if v < 0 || v > math.MaxInt32 {
			return 0, errBadCount
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return 0, errBadCount
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %T", errUnexpectedType, raw)
	}
}

func newWarning(index int, record vaultwarden.UserRecord, name string, raw any, err error) Warning {
	return Warning{
		Index:  index,
		ID:     record.ID(),
		Field:  name,
		Value:  fmt.Sprint(raw),
		Reason: err.Error(),
	}
}
