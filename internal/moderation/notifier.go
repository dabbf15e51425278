package moderation

import "github.com/google/uuid"

// Notifier delivers player-facing and staff-facing messages. The host
// integration implements it; delivery to offline players is a silent
// no-op on the host side.
type Notifier interface {
	// NotifyPlayer sends a message to the player if they are connected.
	NotifyPlayer(playerID uuid.UUID, message string)

	// Disconnect removes the player from the server with the message as
	// the disconnect screen. Used for bans and kicks.
	Disconnect(playerID uuid.UUID, message string)

	// BroadcastStaff sends a message to all privileged observers.
	BroadcastStaff(message string)
}

// NopNotifier discards all notifications. Used in tests and in headless
// tooling that operates on the store without a connected host.
type NopNotifier struct{}

func (NopNotifier) NotifyPlayer(uuid.UUID, string) {}

func (NopNotifier) Disconnect(uuid.UUID, string) {}

func (NopNotifier) BroadcastStaff(string) {}
