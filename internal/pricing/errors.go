package pricing

import "fmt"

// ValidationKind identifies which business rule a candidate price broke.
type ValidationKind string

const (
	// KindNullOrMissing means no value was supplied at all.
	KindNullOrMissing ValidationKind = "null_or_missing"

	// KindNotANumber means the input could not be parsed as a number.
	KindNotANumber ValidationKind = "not_a_number"

	// KindNonFinite means the input parsed to an infinite or NaN value.
	KindNonFinite ValidationKind = "non_finite"

	// KindTooLow means the value is below MinPrice.
	KindTooLow ValidationKind = "too_low"

	// KindTooHigh means the value is above MaxPrice.
	KindTooHigh ValidationKind = "too_high"
)

// ValidationError is returned when a candidate price fails validation.
// Callers match on Kind rather than the message text.
type ValidationError struct {
	Kind ValidationKind
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindNullOrMissing:
		return "pricing: price is required"
	case KindNotANumber:
		return "pricing: price must be a number"
	case KindNonFinite:
		return "pricing: price must be finite"
	case KindTooLow:
		return fmt.Sprintf("pricing: price below minimum (%s)", MinPrice)
	case KindTooHigh:
		return fmt.Sprintf("pricing: price above maximum (%s)", MaxPrice)
	default:
		return "pricing: invalid price"
	}
}

// StorageError is returned when the durable price write fails. The
// operation that raised it performed no state change; callers may retry.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return "pricing: durable price write failed: " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }
