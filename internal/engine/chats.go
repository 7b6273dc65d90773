package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/events"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/models"
)

// CreateChat finds or creates the chat between two users. Creation is
// idempotent: calling it twice returns the same chat. If the requesting
// user had soft-deleted the chat, it becomes visible to them again;
// messages already hidden via chat deletion stay hidden.
func (e *Engine) CreateChat(ctx context.Context, userID, targetID string) (*models.Chat, error) {
	sctx, cancel := e.storeCtx(ctx)
	chat, err := e.store.FindChatByParticipants(sctx, userID, targetID)
	cancel()

	if errors.Is(err, ErrNotFound) {
		sctx, cancel := e.storeCtx(ctx)
		defer cancel()
		chat, err = e.store.CreateChat(sctx, userID, targetID)
		if err != nil {
			return nil, fmt.Errorf("create chat: %w", err)
		}
		return chat, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find chat: %w", err)
	}

	if chat.DeletedByUser(userID) {
		sctx, cancel := e.storeCtx(ctx)
		defer cancel()
		chat, err = e.store.UpdateChat(sctx, chat.ID, func(c *models.Chat) error {
			c.DeletedBy = models.RemoveFromSet(c.DeletedBy, userID)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("restore chat: %w", err)
		}
	}
	return chat, nil
}

// DeleteChat soft-deletes a chat for one participant: the user joins the
// chat's DeletedBy set and every message in the chat becomes hidden for
// them. When the last participant deletes the chat, the whole conversation
// is destroyed: all media is released, then all messages, then the chat
// record itself.
func (e *Engine) DeleteChat(ctx context.Context, chatID, userID string) error {
	sctx, cancel := e.storeCtx(ctx)
	chat, err := e.store.FindChat(sctx, chatID)
	cancel()
	if err != nil {
		return fmt.Errorf("find chat %s: %w", chatID, err)
	}
	if !chat.HasParticipant(userID) {
		return ErrForbidden
	}

	sctx, cancel = e.storeCtx(ctx)
	chat, err = e.store.UpdateChat(sctx, chatID, func(c *models.Chat) error {
		c.DeletedBy, _ = models.AddToSet(c.DeletedBy, userID)
		return nil
	})
	cancel()
	if err != nil {
		return fmt.Errorf("mark chat %s deleted: %w", chatID, err)
	}

	sctx, cancel = e.storeCtx(ctx)
	msgs, err := e.store.MessagesByChat(sctx, chatID, 0, 0)
	cancel()
	if err != nil {
		return fmt.Errorf("load messages of chat %s: %w", chatID, err)
	}

	for _, msg := range msgs {
		sctx, cancel := e.storeCtx(ctx)
		_, err := e.store.UpdateMessage(sctx, msg.ID, func(m *models.Message) error {
			var changed bool
			m.HiddenFor, changed = models.AddToSet(m.HiddenFor, userID)
			if !changed {
				return errUnchanged
			}
			return nil
		})
		cancel()
		if err != nil && !errors.Is(err, errUnchanged) && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("hide message %s: %w", msg.ID, err)
		}
	}

	if chat.DeletedByAll() {
		if err := e.destroyChat(ctx, chat, msgs); err != nil {
			return err
		}
	}

	e.dispatcher.Broadcast(events.SidebarUpdate{})
	return nil
}

// destroyChat cascades a full chat deletion: release every media handle,
// delete every message, then the chat record. Media release is best-effort;
// a failed destroy is logged and never blocks the cascade.
func (e *Engine) destroyChat(ctx context.Context, chat *models.Chat, msgs []*models.Message) error {
	for _, msg := range msgs {
		e.releaseMedia(ctx, msg.ImagePublicIDs)
		e.releaseMedia(ctx, msg.OriginalImagePublicIDs)

		sctx, cancel := e.storeCtx(ctx)
		err := e.store.DeleteMessage(sctx, msg.ID)
		cancel()
		if err != nil {
			return fmt.Errorf("delete message %s: %w", msg.ID, err)
		}
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.store.DeleteChat(sctx, chat.ID); err != nil {
		return fmt.Errorf("delete chat %s: %w", chat.ID, err)
	}
	e.logger.Info().Str("chat", chat.ID).Int("messages", len(msgs)).Msg("chat destroyed by all participants")
	return nil
}

// releaseMedia destroys media handles, logging and continuing past
// individual failures.
func (e *Engine) releaseMedia(ctx context.Context, publicIDs []string) {
	for _, id := range publicIDs {
		sctx, cancel := e.storeCtx(ctx)
		err := e.media.Destroy(sctx, id)
		cancel()
		if err != nil {
			e.logger.Error().Err(err).Str("public_id", id).Msg("failed to release media")
		}
	}
}

// JoinChat subscribes a connection to a chat room's events.
func (e *Engine) JoinChat(conn events.Conn, chatID string) {
	e.dispatcher.JoinRoom(chatID, conn)
}

// Typing relays a typing indicator to everyone in the chat room except the
// typist's own connection.
func (e *Engine) Typing(conn events.Conn, chatID, userID string) {
	e.dispatcher.ToRoomExcept(chatID, conn, events.Typing{UserID: userID})
}
