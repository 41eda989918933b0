// Package protocol defines the event-tagged messages exchanged over a relay connection
package protocol

// Inbound event names (client to server)
const (
	EventLogin         = "login"
	EventMove          = "move"
	EventChat          = "chat"
	EventDirectMessage = "directMessage"
	EventGift          = "gift"
	EventGiftAccept    = "giftAccept"
)

// Outbound event names (server to client)
const (
	EventExistingPlayers    = "existingPlayers"
	EventNewPlayer          = "newPlayer"
	EventPlayerMoved        = "playerMoved"
	EventNewChatMessage     = "newChatMessage"
	EventGiftReceived       = "giftReceived"
	EventGiftConfirmed      = "giftConfirmed"
	EventPlayerDisconnected = "playerDisconnected"
)

// legacyNames maps the event names used by the browser client to their canonical names
var legacyNames = map[string]string{
	"playerLogin":   EventLogin,
	"playerMove":    EventMove,
	"chatMessage":   EventChat,
	"playerMessage": EventDirectMessage,
	"sendGift":      EventGift,
	"acceptGift":    EventGiftAccept,
}

// Canonical resolves legacy inbound names; unknown names are returned unchanged
func Canonical(event string) string {
	if name, ok := legacyNames[event]; ok {
		return name
	}
	return event
}
