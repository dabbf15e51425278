package enum

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownPunishmentType = errors.New("unknown punishment type")

// PunishmentType represents the kind of punishment applied to a player.
type PunishmentType int

const (
	// PunishmentTypeWarn is a formal warning recorded against the player.
	PunishmentTypeWarn PunishmentType = iota
	// PunishmentTypeMute blocks the player from chatting.
	PunishmentTypeMute
	// PunishmentTypeKick disconnects the player once without a lasting block.
	PunishmentTypeKick
	// PunishmentTypeBan blocks the player from joining the server.
	PunishmentTypeBan
)

// PunishmentTypes lists all punishment types in definition order.
func PunishmentTypes() []PunishmentType {
	return []PunishmentType{
		PunishmentTypeWarn,
		PunishmentTypeMute,
		PunishmentTypeKick,
		PunishmentTypeBan,
	}
}

// String returns the canonical storage name of the type.
func (t PunishmentType) String() string {
	switch t {
	case PunishmentTypeWarn:
		return "WARN"
	case PunishmentTypeMute:
		return "MUTE"
	case PunishmentTypeKick:
		return "KICK"
	case PunishmentTypeBan:
		return "BAN"
	default:
		return fmt.Sprintf("PunishmentType(%d)", int(t))
	}
}

// DisplayName returns the human-readable name used in messages.
func (t PunishmentType) DisplayName() string {
	switch t {
	case PunishmentTypeWarn:
		return "Warning"
	case PunishmentTypeMute:
		return "Mute"
	case PunishmentTypeKick:
		return "Kick"
	case PunishmentTypeBan:
		return "Ban"
	default:
		return t.String()
	}
}

// ParsePunishmentType converts a storage or config name into a PunishmentType.
// Matching is case-insensitive.
func ParsePunishmentType(s string) (PunishmentType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WARN":
		return PunishmentTypeWarn, nil
	case "MUTE":
		return PunishmentTypeMute, nil
	case "KICK":
		return PunishmentTypeKick, nil
	case "BAN":
		return PunishmentTypeBan, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPunishmentType, s)
	}
}

// MarshalText implements encoding.TextMarshaler so punishment records
// round-trip through the flat-file backend with readable type names.
func (t PunishmentType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *PunishmentType) UnmarshalText(data []byte) error {
	parsed, err := ParsePunishmentType(string(data))
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}
