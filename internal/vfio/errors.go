package vfio

import (
	"errors"
	"fmt"
)

// Kind classifies a bring-up failure.
type Kind int

const (
	KindUnknown Kind = iota
	ResourceUnavailable
	IncompatibleVersion
	GroupNotFound
	GroupNotViable
	AttachFailed
	SecurityInvariantViolated
	IommuSetupFailed
	DeviceNotFound
	DeviceInfoUnavailable
	RegionQueryFailed
	MappingFailed
)

var kindNames = [...]string{
	KindUnknown:               "Unknown",
	ResourceUnavailable:       "ResourceUnavailable",
	IncompatibleVersion:       "IncompatibleVersion",
	GroupNotFound:             "GroupNotFound",
	GroupNotViable:            "GroupNotViable",
	AttachFailed:              "AttachFailed",
	SecurityInvariantViolated: "SecurityInvariantViolated",
	IommuSetupFailed:          "IommuSetupFailed",
	DeviceNotFound:            "DeviceNotFound",
	DeviceInfoUnavailable:     "DeviceInfoUnavailable",
	RegionQueryFailed:         "RegionQueryFailed",
	MappingFailed:             "MappingFailed",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Error is returned by every operation in this package. Op names the step
// that failed; Err carries the underlying errno or parse error when there
// is one.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
