package mapping

import "errors"

var (
	// ErrLoadFailure is returned when any of the initial loads fails.
	ErrLoadFailure = errors.New("mapping: load failure")
	// ErrNoRowsSelected is returned when a save is attempted with no selected rows.
	ErrNoRowsSelected = errors.New("mapping: no rows selected")
	// ErrSaveFailure is returned when the persistence sink rejects a save.
	ErrSaveFailure = errors.New("mapping: save failure")
	// ErrNotFound is returned when an edit targets an unknown product or period.
	ErrNotFound = errors.New("mapping: not found")
	// ErrUnknownField is returned when an edit names a field outside the field set.
	ErrUnknownField = errors.New("mapping: unknown field")
	// ErrInvalidValue is returned when a numeric field value cannot be parsed.
	ErrInvalidValue = errors.New("mapping: invalid value")
	// ErrInvalidAnchor is returned for anchor years outside the supported range.
	ErrInvalidAnchor = errors.New("mapping: invalid anchor year")
	// ErrInvalidPeriodID is returned when a period id cannot be parsed.
	ErrInvalidPeriodID = errors.New("mapping: invalid period id")
	// ErrInvalidFieldSet is returned when the configured field set is unusable.
	ErrInvalidFieldSet = errors.New("mapping: invalid field set")
)
