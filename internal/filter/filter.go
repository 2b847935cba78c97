// Package filter holds the analyst's editable query and the pure reducers
// that change it.
//
// Year and model are never written directly: they are derived from the
// selected month through ApplyMonthSelection so the two cannot disagree.
package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/canemap/canemap/internal/prediction"
	"github.com/canemap/canemap/internal/zone"
)

// Errors returned by the reducers.
var (
	ErrUnknownMonth = errors.New("unknown month")
	ErrDerivedField = errors.New("field is derived from the selected month")
	ErrInvalidValue = errors.New("invalid value")
	ErrUnknownField = errors.New("unknown field")
)

// DefaultLimit caps the number of records the backend returns per query.
const DefaultLimit = 5000

// Field names accepted by SetField.
type Field string

const (
	FieldYear          Field = "year"
	FieldStartMonth    Field = "start_month"
	FieldEndMonth      Field = "end_month"
	FieldSelectedMonth Field = "selected_month"
	FieldModels        Field = "models"
	FieldZones         Field = "zones"
	FieldLimit         Field = "limit"
	FieldGroupByLevel  Field = "group_by_level"
)

// State is the query being edited plus the zone the map is focused on.
type State struct {
	Query       prediction.Query
	FocusedZone string
}

// Default returns the state a new session starts with.
func Default() State {
	s := State{
		Query: prediction.Query{
			StartMonth: 1,
			EndMonth:   12,
			Zones:      zone.DefaultNames(),
			Limit:      DefaultLimit,
		},
	}
	s, _ = ApplyMonthSelection(s, 1)
	return s
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	return State{Query: s.Query.Clone(), FocusedZone: s.FocusedZone}
}

// ApplyMonthSelection rewrites selected month, year and models together from
// the month table. The input state is not modified.
func ApplyMonthSelection(s State, month int) (State, error) {
	entry, ok := LookupMonth(month)
	if !ok {
		return s, fmt.Errorf("%w: %d", ErrUnknownMonth, month)
	}

	next := s.Clone()
	next.Query.SelectedMonth = entry.Month
	next.Query.Year = entry.Year
	next.Query.Models = []string{entry.Model}
	return next, nil
}

// SetField updates one editable field. Values arrive decoded from JSON, so
// numbers may be float64 or json.Number.
func SetField(s State, field Field, value any) (State, error) {
	switch field {
	case FieldYear, FieldModels:
		return s, fmt.Errorf("%w: %s", ErrDerivedField, field)

	case FieldSelectedMonth:
		month, err := toInt(value)
		if err != nil {
			return s, fmt.Errorf("%s: %w", field, err)
		}
		return ApplyMonthSelection(s, month)

	case FieldStartMonth, FieldEndMonth:
		month, err := toInt(value)
		if err != nil {
			return s, fmt.Errorf("%s: %w", field, err)
		}
		if month < 1 || month > 12 {
			return s, fmt.Errorf("%w: %s must be between 1 and 12", ErrInvalidValue, field)
		}
		next := s.Clone()
		if field == FieldStartMonth {
			next.Query.StartMonth = month
		} else {
			next.Query.EndMonth = month
		}
		return next, nil

	case FieldLimit:
		limit, err := toInt(value)
		if err != nil {
			return s, fmt.Errorf("%s: %w", field, err)
		}
		if limit <= 0 {
			return s, fmt.Errorf("%w: limit must be positive", ErrInvalidValue)
		}
		next := s.Clone()
		next.Query.Limit = limit
		return next, nil

	case FieldZones:
		zones, err := toZones(value)
		if err != nil {
			return s, fmt.Errorf("%s: %w", field, err)
		}
		next := s.Clone()
		next.Query.Zones = zones
		if next.FocusedZone != "" && !slices.Equal(zones, []string{next.FocusedZone}) {
			next.FocusedZone = ""
		}
		return next, nil

	case FieldGroupByLevel:
		grouped, ok := value.(bool)
		if !ok {
			return s, fmt.Errorf("%w: group_by_level must be a boolean", ErrInvalidValue)
		}
		next := s.Clone()
		next.Query.GroupByLevel = grouped
		return next, nil
	}

	return s, fmt.Errorf("%w: %s", ErrUnknownField, field)
}

// FocusZone narrows the query to a single zone. The returned view is where
// the map should move; ok is false when the zone has no known center, in
// which case the map must stay where it is.
func FocusZone(s State, name string) (next State, view zone.View, ok bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return s, zone.View{}, false, fmt.Errorf("%w: zone name is required", ErrInvalidValue)
	}

	next = s.Clone()
	next.Query.Zones = []string{name}
	next.FocusedZone = name

	center, ok := zone.Center(name)
	if !ok {
		return next, zone.View{}, false, nil
	}
	return next, zone.View{Center: center, Zoom: zone.FocusZoom, Layer: zone.DefaultView.Layer}, true, nil
}

// ResetZoneFocus restores the full zone list and returns the default view.
func ResetZoneFocus(s State) (State, zone.View) {
	next := s.Clone()
	next.Query.Zones = zone.DefaultNames()
	next.FocusedZone = ""
	return next, zone.DefaultView
}

// HasUnappliedChanges reports whether the edited query differs from the
// applied one in any field that changes what the backend returns.
func HasUnappliedChanges(edited, applied prediction.Query) bool {
	return edited.Year != applied.Year ||
		edited.SelectedMonth != applied.SelectedMonth ||
		edited.Limit != applied.Limit ||
		!slices.Equal(edited.Models, applied.Models) ||
		!slices.Equal(edited.Zones, applied.Zones)
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not an integer", ErrInvalidValue, v)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: expected a number, got %T", ErrInvalidValue, value)
}

// toZones accepts a CSV string or a list of names. Names are trimmed and
// deduplicated keeping first occurrence order.
func toZones(value any) ([]string, error) {
	var raw []string
	switch v := value.(type) {
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			name, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: zone names must be strings", ErrInvalidValue)
			}
			raw = append(raw, name)
		}
	default:
		return nil, fmt.Errorf("%w: expected zone list, got %T", ErrInvalidValue, value)
	}

	zones := make([]string, 0, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" || slices.Contains(zones, name) {
			continue
		}
		zones = append(zones, name)
	}
	if len(zones) == 0 {
		return nil, fmt.Errorf("%w: at least one zone is required", ErrInvalidValue)
	}
	return zones, nil
}
