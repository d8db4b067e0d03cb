package domain

var (
	ErrNotFound        = errString("not found")
	ErrIntervalOverlap = errString("sector interval overlaps existing history")
	ErrInvalidRange    = errString("invalid date range")
	ErrInvalidInput    = errString("invalid input")
)

type errString string

func (e errString) Error() string { return string(e) }
