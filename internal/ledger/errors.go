package ledger

import "errors"

var (
	ErrNotFound           = errors.New("ledger: not found")
	ErrDuplicateReference = errors.New("ledger: duplicate reference")
	ErrInvalidTransition  = errors.New("ledger: invalid status transition")
	ErrUnknownProvider    = errors.New("ledger: unknown provider")
	// ErrStaleStatus means the stored row left the expected status before the
	// write landed.
	ErrStaleStatus = errors.New("ledger: status changed concurrently")
)

func IsNotFound(err error) bool  { return errors.Is(err, ErrNotFound) }
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicateReference) }
func IsStale(err error) bool     { return errors.Is(err, ErrStaleStatus) }
