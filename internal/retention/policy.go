package retention

import (
	"errors"
	"fmt"
)

// ErrInvalidPolicy is returned by Policy.Validate.
var ErrInvalidPolicy = errors.New("invalid retention policy")

// Default thresholds of a policy whose days were left unset.
const (
	DefaultCompressAfterDays = 1
	DefaultDeleteAfterDays   = 1
)

// Policy holds the per-stream compress-after and delete-after thresholds.
// Day counts are only meaningful when the matching action is enabled.
type Policy struct {
	Compress          bool `json:"compress" yaml:"compress"`
	CompressAfterDays int  `json:"compressAfterDays" yaml:"compressAfterDays"`
	Delete            bool `json:"delete" yaml:"delete"`
	DeleteAfterDays   int  `json:"deleteAfterDays" yaml:"deleteAfterDays"`
}

// DefaultPolicy does nothing; a stream resolving to it is skipped.
func DefaultPolicy() Policy {
	return Policy{
		CompressAfterDays: DefaultCompressAfterDays,
		DeleteAfterDays:   DefaultDeleteAfterDays,
	}
}

// Enabled reports whether the policy compresses or deletes anything.
func (p Policy) Enabled() bool {
	return p.Compress || p.Delete
}

// Validate checks the day thresholds of enabled actions. When both actions
// are on, files must be deleted strictly later than they are compressed.
func (p Policy) Validate() error {
	if p.Compress && p.CompressAfterDays < 1 {
		return fmt.Errorf("%w: compressAfterDays must be at least 1, got %d", ErrInvalidPolicy, p.CompressAfterDays)
	}
	if p.Delete && p.DeleteAfterDays < 1 {
		return fmt.Errorf("%w: deleteAfterDays must be at least 1, got %d", ErrInvalidPolicy, p.DeleteAfterDays)
	}
	if p.Compress && p.Delete && p.DeleteAfterDays <= p.CompressAfterDays {
		return fmt.Errorf("%w: deleteAfterDays (%d) must be greater than compressAfterDays (%d)",
			ErrInvalidPolicy, p.DeleteAfterDays, p.CompressAfterDays)
	}
	return nil
}

func (p Policy) String() string {
	switch {
	case p.Compress && p.Delete:
		return fmt.Sprintf("compress after %dd, delete after %dd", p.CompressAfterDays, p.DeleteAfterDays)
	case p.Compress:
		return fmt.Sprintf("compress after %dd", p.CompressAfterDays)
	case p.Delete:
		return fmt.Sprintf("delete after %dd", p.DeleteAfterDays)
	}
	return "keep"
}
