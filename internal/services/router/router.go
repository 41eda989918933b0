// Package router turns inbound protocol events into registry changes and outbound batches
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mcoot/islandrelay/internal/dependencies/clock"
	"github.com/mcoot/islandrelay/internal/dependencies/random"
	"github.com/mcoot/islandrelay/internal/model"
	"github.com/mcoot/islandrelay/internal/protocol"
	"github.com/mcoot/islandrelay/internal/services/registry"
)

// Router dispatches inbound events by name
type Router struct {
	registry *registry.Registry
	clock    clock.Clock
	random   random.Random
	logger   *slog.Logger
}

// New creates a Router
func New(
	registry *registry.Registry,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Router {
	return &Router{
		registry: registry,
		clock:    clock,
		random:   random,
		logger:   logger,
	}
}

// Handle processes one inbound event from a connection
// Events from connections that have not logged in, or that reference absent players, yield an empty batch
func (r *Router) Handle(ctx context.Context, id model.ConnectionID, env protocol.Envelope) (protocol.Batch, error) {
	switch env.Event {
	case protocol.EventLogin:
		return r.login(ctx, id, env)
	case protocol.EventMove:
		return r.move(ctx, id, env)
	case protocol.EventChat:
		return r.chat(ctx, id, env)
	case protocol.EventDirectMessage:
		return r.directMessage(ctx, id, env)
	case protocol.EventGift:
		return r.gift(ctx, id, env)
	case protocol.EventGiftAccept:
		return r.giftAccept(ctx, id, env)
	default:
		return nil, fmt.Errorf("%w: %q", protocol.ErrUnknownEvent, env.Event)
	}
}

// HandleDisconnect removes the connection's player, announcing it if one existed
func (r *Router) HandleDisconnect(ctx context.Context, id model.ConnectionID) (protocol.Batch, error) {
	player, ok, err := r.registry.Remove(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	r.logger.Info("player disconnected",
		slog.String("connection_id", string(id)),
		slog.String("username", player.Username),
	)

	return protocol.Batch{
		{Target: protocol.All(), Event: protocol.EventPlayerDisconnected, Payload: string(id)},
	}, nil
}

func (r *Router) login(ctx context.Context, id model.ConnectionID, env protocol.Envelope) (protocol.Batch, error) {
	login, err := protocol.DecodeLogin(env.Data)
	if err != nil {
		return nil, err
	}

	player, err := r.registry.Insert(ctx, id, login.Username, login.Emoji)
	if err != nil {
		return nil, err
	}

	players, err := r.registry.All(ctx)
	if err != nil {
		return nil, err
	}

	r.logger.Info("player logged in",
		slog.String("connection_id", string(id)),
		slog.String("username", player.Username),
		slog.Int("online", len(players)),
	)

	return protocol.Batch{
		{Target: protocol.To(id), Event: protocol.EventExistingPlayers, Payload: protocol.RecordsFromModel(players)},
		{Target: protocol.AllExcept(id), Event: protocol.EventNewPlayer, Payload: protocol.RecordFromModel(player)},
	}, nil
}

func (r *Router) move(ctx context.Context, id model.ConnectionID, env protocol.Envelope) (protocol.Batch, error) {
	move, err := protocol.DecodeMove(env.Data)
	if err != nil {
		return nil, err
	}

	ok, err := r.registry.UpdatePosition(ctx, id, move.X, move.Y)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.dropped(id, env.Event, "sender not logged in")
		return nil, nil
	}

	return protocol.Batch{
		{
			Target:  protocol.AllExcept(id),
			Event:   protocol.EventPlayerMoved,
			Payload: protocol.PlayerMoved{ID: string(id), X: move.X, Y: move.Y},
		},
	}, nil
}

func (r *Router) chat(ctx context.Context, id model.ConnectionID, env protocol.Envelope) (protocol.Batch, error) {
	chat, err := protocol.DecodeChat(env.Data)
	if err != nil {
		return nil, err
	}

	sender, ok, err := r.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.dropped(id, env.Event, "sender not logged in")
		return nil, nil
	}

	return protocol.Batch{
		{
			Target: protocol.All(),
			Event:  protocol.EventNewChatMessage,
			Payload: protocol.ChatMessage{
				PlayerID:  string(id),
				Username:  sender.Username,
				Message:   chat.Message,
				Timestamp: r.clock.Now().UnixMilli(),
			},
		},
	}, nil
}

func (r *Router) directMessage(ctx context.Context, id model.ConnectionID, env protocol.Envelope) (protocol.Batch, error) {
	dm, err := protocol.DecodeDirectMessage(env.Data)
	if err != nil {
		return nil, err
	}

	sender, _, ok, err := r.pair(ctx, id, dm.TargetPlayerID, env.Event)
	if err != nil || !ok {
		return nil, err
	}

	return protocol.Batch{
		{
			Target: protocol.To(dm.TargetPlayerID),
			Event:  protocol.EventDirectMessage,
			Payload: protocol.DirectMessageDelivery{
				SenderName: sender.Username,
				Message:    dm.Message,
				IsOwn:      false,
			},
		},
	}, nil
}

func (r *Router) gift(ctx context.Context, id model.ConnectionID, env protocol.Envelope) (protocol.Batch, error) {
	gift, err := protocol.DecodeGift(env.Data)
	if err != nil {
		return nil, err
	}

	sender, _, ok, err := r.pair(ctx, id, gift.TargetPlayerID, env.Event)
	if err != nil || !ok {
		return nil, err
	}

	giftID := r.random.NewID()
	r.logger.Debug("gift offered",
		slog.String("gift_id", giftID),
		slog.String("sender_id", string(id)),
		slog.String("target_id", string(gift.TargetPlayerID)),
		slog.String("item_key", gift.ItemKey),
		slog.Int("amount", gift.Amount),
	)

	return protocol.Batch{
		{
			Target: protocol.To(gift.TargetPlayerID),
			Event:  protocol.EventGiftReceived,
			Payload: protocol.GiftReceived{
				GiftID:     giftID,
				SenderID:   string(id),
				SenderName: sender.Username,
				ItemKey:    gift.ItemKey,
				ItemName:   gift.ItemName,
				ItemEmoji:  gift.ItemEmoji,
				Amount:     gift.Amount,
			},
		},
	}, nil
}

func (r *Router) giftAccept(ctx context.Context, id model.ConnectionID, env protocol.Envelope) (protocol.Batch, error) {
	accept, err := protocol.DecodeGiftAccept(env.Data)
	if err != nil {
		return nil, err
	}

	recipient, _, ok, err := r.pair(ctx, id, accept.SenderID, env.Event)
	if err != nil || !ok {
		return nil, err
	}

	return protocol.Batch{
		{
			Target: protocol.To(accept.SenderID),
			Event:  protocol.EventGiftConfirmed,
			Payload: protocol.GiftConfirmed{
				RecipientName: recipient.Username,
				ItemName:      accept.ItemName,
				Amount:        accept.Amount,
			},
		},
	}, nil
}

// pair looks up the acting connection and the player it references; ok is false if either is gone
func (r *Router) pair(ctx context.Context, from, to model.ConnectionID, event string) (model.Player, model.Player, bool, error) {
	actor, ok, err := r.registry.Get(ctx, from)
	if err != nil {
		return model.Player{}, model.Player{}, false, err
	}
	if !ok {
		r.dropped(from, event, "sender not logged in")
		return model.Player{}, model.Player{}, false, nil
	}

	other, ok, err := r.registry.Get(ctx, to)
	if err != nil {
		return model.Player{}, model.Player{}, false, err
	}
	if !ok {
		r.dropped(from, event, "target not online")
		return model.Player{}, model.Player{}, false, nil
	}

	return actor, other, true, nil
}

func (r *Router) dropped(id model.ConnectionID, event, reason string) {
	r.logger.Debug("event dropped",
		slog.String("connection_id", string(id)),
		slog.String("event", event),
		slog.String("reason", reason),
	)
}
