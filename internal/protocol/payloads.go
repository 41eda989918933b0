package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcoot/islandrelay/internal/model"
)

// Defaults applied to a giftAccept that omits its optional fields
const (
	DefaultGiftItemName = "item"
	DefaultGiftAmount   = 1
)

// Login is the validated login payload
type Login struct {
	Username string
	Emoji    string
}

// Move is the validated move payload
type Move struct {
	X float64
	Y float64
}

// Chat is the validated chat payload
type Chat struct {
	Message string
}

// DirectMessage is the validated client to server direct message payload
type DirectMessage struct {
	TargetPlayerID model.ConnectionID
	Message        string
}

// Gift is the validated gift offer payload
type Gift struct {
	TargetPlayerID model.ConnectionID
	ItemKey        string
	ItemName       string
	ItemEmoji      string
	Amount         int
}

// GiftAccept is the validated gift acceptance payload with defaults applied
type GiftAccept struct {
	SenderID model.ConnectionID
	ItemName string
	Amount   int
}

// DecodeLogin validates a login payload
func DecodeLogin(data json.RawMessage) (Login, error) {
	var raw struct {
		Username *string `json:"username"`
		Emoji    *string `json:"emoji"`
	}
	if err := unmarshal(data, &raw); err != nil {
		return Login{}, err
	}
	username, err := requireString("username", raw.Username)
	if err != nil {
		return Login{}, err
	}
	emoji, err := requireString("emoji", raw.Emoji)
	if err != nil {
		return Login{}, err
	}
	return Login{Username: username, Emoji: emoji}, nil
}

// DecodeMove validates a move payload
func DecodeMove(data json.RawMessage) (Move, error) {
	var raw struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := unmarshal(data, &raw); err != nil {
		return Move{}, err
	}
	if raw.X == nil {
		return Move{}, missing("x")
	}
	if raw.Y == nil {
		return Move{}, missing("y")
	}
	return Move{X: *raw.X, Y: *raw.Y}, nil
}

// DecodeChat validates a chat payload
func DecodeChat(data json.RawMessage) (Chat, error) {
	var raw struct {
		Message *string `json:"message"`
	}
	if err := unmarshal(data, &raw); err != nil {
		return Chat{}, err
	}
	msg, err := presentString("message", raw.Message)
	if err != nil {
		return Chat{}, err
	}
	return Chat{Message: msg}, nil
}

// DecodeDirectMessage validates a direct message payload
func DecodeDirectMessage(data json.RawMessage) (DirectMessage, error) {
	var raw struct {
		TargetPlayerID *string `json:"targetPlayerId"`
		Message        *string `json:"message"`
	}
	if err := unmarshal(data, &raw); err != nil {
		return DirectMessage{}, err
	}
	target, err := requireString("targetPlayerId", raw.TargetPlayerID)
	if err != nil {
		return DirectMessage{}, err
	}
	msg, err := presentString("message", raw.Message)
	if err != nil {
		return DirectMessage{}, err
	}
	return DirectMessage{TargetPlayerID: model.ConnectionID(target), Message: msg}, nil
}

// DecodeGift validates a gift offer payload
func DecodeGift(data json.RawMessage) (Gift, error) {
	var raw struct {
		TargetPlayerID *string `json:"targetPlayerId"`
		ItemKey        *string `json:"itemKey"`
		ItemName       string  `json:"itemName"`
		ItemEmoji      string  `json:"itemEmoji"`
		Amount         *int    `json:"amount"`
	}
	if err := unmarshal(data, &raw); err != nil {
		return Gift{}, err
	}
	target, err := requireString("targetPlayerId", raw.TargetPlayerID)
	if err != nil {
		return Gift{}, err
	}
	itemKey, err := requireString("itemKey", raw.ItemKey)
	if err != nil {
		return Gift{}, err
	}
	if raw.Amount == nil {
		return Gift{}, missing("amount")
	}
	if *raw.Amount <= 0 {
		return Gift{}, fmt.Errorf("%w: amount must be positive, got %d", ErrMalformedPayload, *raw.Amount)
	}
	return Gift{
		TargetPlayerID: model.ConnectionID(target),
		ItemKey:        itemKey,
		ItemName:       raw.ItemName,
		ItemEmoji:      raw.ItemEmoji,
		Amount:         *raw.Amount,
	}, nil
}

// DecodeGiftAccept validates a gift acceptance payload
func DecodeGiftAccept(data json.RawMessage) (GiftAccept, error) {
	var raw struct {
		SenderID *string `json:"senderId"`
		ItemName string  `json:"itemName"`
		Amount   int     `json:"amount"`
	}
	if err := unmarshal(data, &raw); err != nil {
		return GiftAccept{}, err
	}
	sender, err := requireString("senderId", raw.SenderID)
	if err != nil {
		return GiftAccept{}, err
	}
	accept := GiftAccept{
		SenderID: model.ConnectionID(sender),
		ItemName: raw.ItemName,
		Amount:   raw.Amount,
	}
	if accept.ItemName == "" {
		accept.ItemName = DefaultGiftItemName
	}
	if accept.Amount == 0 {
		accept.Amount = DefaultGiftAmount
	}
	return accept, nil
}

func unmarshal(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrMalformedPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func requireString(field string, v *string) (string, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return "", missing(field)
	}
	return *v, nil
}

// presentString accepts any string, blank included, as long as the field was sent
func presentString(field string, v *string) (string, error) {
	if v == nil {
		return "", missing(field)
	}
	return *v, nil
}

func missing(field string) error {
	return fmt.Errorf("%w: %s is required", ErrMalformedPayload, field)
}

// PlayerRecord is the wire form of a Player
type PlayerRecord struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Emoji      string  `json:"emoji"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	LastUpdate int64   `json:"lastUpdate"` // Unix milliseconds
}

// RecordFromModel converts a model.Player to its wire form
func RecordFromModel(p model.Player) PlayerRecord {
	return PlayerRecord{
		ID:         string(p.ID),
		Username:   p.Username,
		Emoji:      p.Emoji,
		X:          p.Position.X,
		Y:          p.Position.Y,
		LastUpdate: p.LastUpdate.UnixMilli(),
	}
}

// RecordsFromModel converts a roster snapshot
func RecordsFromModel(players []model.Player) []PlayerRecord {
	records := make([]PlayerRecord, len(players))
	for i, p := range players {
		records[i] = RecordFromModel(p)
	}
	return records
}

// PlayerMoved is broadcast to other connections after a move
type PlayerMoved struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// ChatMessage is broadcast to every connection for each chat
type ChatMessage struct {
	PlayerID  string `json:"playerId"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
}

// DirectMessageDelivery is what the recipient of a direct message sees
type DirectMessageDelivery struct {
	SenderName string `json:"senderName"`
	Message    string `json:"message"`
	IsOwn      bool   `json:"isOwn"`
}

// GiftReceived is unicast to the recipient of a gift offer
type GiftReceived struct {
	GiftID     string `json:"giftId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	ItemKey    string `json:"itemKey"`
	ItemName   string `json:"itemName"`
	ItemEmoji  string `json:"itemEmoji"`
	Amount     int    `json:"amount"`
}

// GiftConfirmed is unicast to the original sender once a gift is accepted
type GiftConfirmed struct {
	RecipientName string `json:"recipientName"`
	ItemName      string `json:"itemName"`
	Amount        int    `json:"amount"`
}
