package enum

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownAppealStatus = errors.New("unknown appeal status")

// AppealStatus represents the review state of an appeal.
type AppealStatus int

const (
	AppealStatusPending AppealStatus = iota
	AppealStatusApproved
	AppealStatusDenied
)

// String returns the canonical storage name of the status.
func (s AppealStatus) String() string {
	switch s {
	case AppealStatusPending:
		return "PENDING"
	case AppealStatusApproved:
		return "APPROVED"
	case AppealStatusDenied:
		return "DENIED"
	default:
		return fmt.Sprintf("AppealStatus(%d)", int(s))
	}
}

// ParseAppealStatus converts a storage name into an AppealStatus.
// Matching is case-insensitive.
func ParseAppealStatus(v string) (AppealStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "PENDING":
		return AppealStatusPending, nil
	case "APPROVED":
		return AppealStatusApproved, nil
	case "DENIED":
		return AppealStatusDenied, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAppealStatus, v)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s AppealStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *AppealStatus) UnmarshalText(data []byte) error {
	parsed, err := ParseAppealStatus(string(data))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}
