package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/events"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/metrics"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/models"
)

// deriveStatus computes the initial delivery status of a send or edit:
// delivered if the receiver is reachable right now, sent otherwise.
func (e *Engine) deriveStatus(receiverID string) models.Status {
	if e.presence.IsOnline(receiverID) {
		return models.StatusDelivered
	}
	return models.StatusSent
}

// Join binds a user to a connection, broadcasts the new online list, and
// flushes every message still waiting for this receiver: each one moves
// sent → delivered exactly once, the sender is notified per message, and
// the message itself is handed to the joining connection.
func (e *Engine) Join(ctx context.Context, userID string, conn events.Conn) error {
	e.presence.SetOnline(userID, conn)
	metrics.OnlineUsers.Set(float64(len(e.presence.OnlineIDs())))
	e.broadcastOnline(ctx)

	sctx, cancel := e.storeCtx(ctx)
	undelivered, err := e.store.UndeliveredTo(sctx, userID)
	cancel()
	if err != nil {
		return fmt.Errorf("flush undelivered for %s: %w", userID, err)
	}

	for _, msg := range undelivered {
		sctx, cancel := e.storeCtx(ctx)
		delivered, err := e.store.UpdateMessage(sctx, msg.ID, func(m *models.Message) error {
			if m.Status != models.StatusSent {
				return errUnchanged // raced with another join
			}
			m.Status = models.StatusDelivered
			return nil
		})
		cancel()
		if errors.Is(err, errUnchanged) || errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			e.logger.Error().Err(err).Str("message", msg.ID).Msg("failed to mark message delivered")
			continue
		}
		metrics.MessagesDelivered.Inc()

		if senderConn, ok := e.presence.ConnFor(delivered.SenderID); ok {
			e.dispatcher.ToConn(senderConn, events.MessageStatus{
				MessageID: delivered.ID,
				Status:    models.StatusDelivered,
			})
		}
		e.dispatcher.ToConn(conn, events.ReceiveMessage{Message: delivered})
	}
	return nil
}

// MessageRead records an explicit read acknowledgment: the acknowledging
// user joins ReadBy, status moves to read, and the sender is notified if
// online. Acknowledging twice is a no-op the second time.
func (e *Engine) MessageRead(ctx context.Context, messageID, userID string) error {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	msg, err := e.store.UpdateMessage(sctx, messageID, func(m *models.Message) error {
		if m.ReadByUser(userID) {
			return errUnchanged
		}
		m.ReadBy, _ = models.AddToSet(m.ReadBy, userID)
		m.Status = models.StatusRead
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark message %s read: %w", messageID, err)
	}
	metrics.MessagesRead.Inc()

	if senderConn, ok := e.presence.ConnFor(msg.SenderID); ok {
		e.dispatcher.ToConn(senderConn, events.MessageStatus{
			MessageID: msg.ID,
			Status:    models.StatusRead,
		})
	}
	return nil
}

// MarkChatRead acknowledges every delivered message addressed to userID in
// a chat, one atomic transition per message.
func (e *Engine) MarkChatRead(ctx context.Context, chatID, userID string) error {
	sctx, cancel := e.storeCtx(ctx)
	msgs, err := e.store.MessagesByChat(sctx, chatID, 0, 0)
	cancel()
	if err != nil {
		return fmt.Errorf("load messages of chat %s: %w", chatID, err)
	}

	for _, msg := range msgs {
		if msg.ReceiverID != userID || msg.Status != models.StatusDelivered {
			continue
		}
		if err := e.MessageRead(ctx, msg.ID, userID); err != nil {
			e.logger.Warn().Err(err).Str("message", msg.ID).Msg("failed to mark message read")
		}
	}
	return nil
}

// Logout removes the user from presence, stamps their last-seen time, and
// broadcasts the updated online list.
func (e *Engine) Logout(ctx context.Context, userID string) {
	if e.presence.IsOnline(userID) {
		e.presence.Remove(userID)
		metrics.OnlineUsers.Set(float64(len(e.presence.OnlineIDs())))

		sctx, cancel := e.storeCtx(ctx)
		if _, err := e.store.UpdateUserLastSeen(sctx, userID, e.clock.Now()); err != nil {
			e.logger.Warn().Err(err).Str("user", userID).Msg("failed to update last seen on logout")
		}
		cancel()
	}
	e.broadcastOnline(ctx)
}

// Disconnect handles a dropped connection: if the connection still owns a
// presence entry it is removed, the user's last-seen time is stamped and
// announced, and the online list is re-broadcast. A connection already
// evicted by a newer join changes nothing.
func (e *Engine) Disconnect(ctx context.Context, conn events.Conn) {
	if userID, ok := e.presence.RemoveConn(conn); ok {
		metrics.OnlineUsers.Set(float64(len(e.presence.OnlineIDs())))

		sctx, cancel := e.storeCtx(ctx)
		user, err := e.store.UpdateUserLastSeen(sctx, userID, e.clock.Now())
		cancel()
		if err != nil {
			e.logger.Warn().Err(err).Str("user", userID).Msg("failed to update last seen on disconnect")
		} else {
			e.dispatcher.Broadcast(events.UserLastSeenUpdated{
				UserID:   userID,
				LastSeen: user.LastSeen,
			})
		}
	}
	e.broadcastOnline(ctx)
}

// broadcastOnline sends the full online-user list to everyone. A store
// failure skips this broadcast cycle; presence resyncs on the next change.
func (e *Engine) broadcastOnline(ctx context.Context) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	users, err := e.store.ListUsers(sctx, e.presence.OnlineIDs())
	if err != nil {
		e.logger.Warn().Err(err).Msg("skipping online-users broadcast")
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	e.dispatcher.Broadcast(events.OnlineUsers{Users: users})
}
