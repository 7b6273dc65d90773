package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/events"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/metrics"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/models"
)

// SendRequest carries a send or edit. A non-empty ID makes it an edit of
// an existing message, allowed only for that message's sender.
type SendRequest struct {
	ID             string             `json:"id,omitempty"`
	ChatID         string             `json:"chat"`
	SenderID       string             `json:"sender"`
	ReceiverID     string             `json:"receiver"`
	Content        string             `json:"content"`
	Images         []string           `json:"images"`
	ImagePublicIDs []string           `json:"imagePublicIds"`
	Type           models.MessageType `json:"type,omitempty"`
}

// SendMessage creates a new message or edits an existing one. Delivery
// status is derived from the receiver's reachability at this instant; an
// edit re-derives it exactly as a fresh send would. If the receiver had
// soft-deleted the chat, receiving a message un-deletes it for them.
func (e *Engine) SendMessage(ctx context.Context, req SendRequest) (*models.Message, error) {
	status := e.deriveStatus(req.ReceiverID)

	msgType := req.Type
	if msgType == "" {
		msgType = models.TypeText
	}

	var saved *models.Message
	if req.ID != "" {
		sctx, cancel := e.storeCtx(ctx)
		msg, err := e.store.UpdateMessage(sctx, req.ID, func(m *models.Message) error {
			if m.SenderID != req.SenderID {
				return ErrUnauthorized
			}
			m.Content = req.Content
			// An edit with no new images keeps the existing ones.
			if len(req.Images) > 0 {
				m.Images = req.Images
				m.ImagePublicIDs = req.ImagePublicIDs
			}
			m.Edited = true
			m.Status = status
			m.Type = msgType
			return nil
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("edit message %s: %w", req.ID, err)
		}
		saved = msg
	} else {
		msg := &models.Message{
			ChatID:         req.ChatID,
			SenderID:       req.SenderID,
			ReceiverID:     req.ReceiverID,
			Content:        req.Content,
			Images:         emptyIfNil(req.Images),
			ImagePublicIDs: emptyIfNil(req.ImagePublicIDs),
			Type:           msgType,
			Status:         status,
			ReadBy:         []string{},
			HiddenFor:      []string{},
			DeletedBy:      []string{},
			CreatedAt:      e.clock.Now(),
		}
		sctx, cancel := e.storeCtx(ctx)
		err := e.store.CreateMessage(sctx, msg)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("create message: %w", err)
		}
		saved = msg
		metrics.MessagesSent.Inc()
		if status == models.StatusDelivered {
			metrics.MessagesDelivered.Inc()
		}
	}

	e.restoreChatFor(ctx, req.ChatID, req.ReceiverID)

	if senderConn, ok := e.presence.ConnFor(req.SenderID); ok {
		e.dispatcher.ToConn(senderConn, events.MessageSent{Message: saved})
		e.dispatcher.ToConn(senderConn, events.MessageStatus{MessageID: saved.ID, Status: status})
	}
	if receiverConn, ok := e.presence.ConnFor(req.ReceiverID); ok {
		e.dispatcher.ToConn(receiverConn, events.ReceiveMessage{Message: saved})
		e.dispatcher.ToConn(receiverConn, events.SidebarUpdate{Message: saved})
	}
	return saved, nil
}

// DeleteMessage soft-deletes a message. The sender deletes globally:
// content and images move into shadow fields, the message shows as deleted
// to both sides, and the purge grace period starts. Anyone else deletes
// locally: only their id is added to DeletedBy and content is untouched.
func (e *Engine) DeleteMessage(ctx context.Context, messageID, userID string) (*models.Message, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	msg, err := e.store.UpdateMessage(sctx, messageID, func(m *models.Message) error {
		if m.SenderID == userID {
			content := m.Content
			m.OriginalContent = &content
			m.OriginalImages = m.Images
			m.OriginalImagePublicIDs = m.ImagePublicIDs
			m.Deleted = true
			now := e.clock.Now()
			m.DeletedAt = &now
			m.Content = ""
			m.Images = []string{}
			m.ImagePublicIDs = []string{}
			// Global deletion supersedes any local deletion marks.
			m.DeletedBy = []string{}
		} else {
			m.DeletedBy, _ = models.AddToSet(m.DeletedBy, userID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete message %s: %w", messageID, err)
	}
	metrics.MessagesDeleted.Inc()

	e.dispatcher.ToRoom(msg.ChatID, events.MessageDeleted{Message: msg})
	e.dispatcher.Broadcast(events.SidebarUpdate{})
	return msg, nil
}

// UndoDeleteMessage reverses a soft delete. The sender restores content
// and images from the shadow fields and clears the deletion state; anyone
// else is removed from DeletedBy. Delivery status is never rolled back.
// After the purge sweep has run the message is gone and undo fails with
// ErrNotFound.
func (e *Engine) UndoDeleteMessage(ctx context.Context, messageID, userID string) (*models.Message, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	msg, err := e.store.UpdateMessage(sctx, messageID, func(m *models.Message) error {
		if m.SenderID == userID {
			m.Deleted = false
			m.DeletedAt = nil
			if m.OriginalContent != nil {
				m.Content = *m.OriginalContent
			} else {
				m.Content = ""
			}
			m.Images = emptyIfNil(m.OriginalImages)
			m.ImagePublicIDs = emptyIfNil(m.OriginalImagePublicIDs)
			m.OriginalContent = nil
			m.OriginalImages = nil
			m.OriginalImagePublicIDs = nil
		} else {
			m.DeletedBy = models.RemoveFromSet(m.DeletedBy, userID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("undo delete of message %s: %w", messageID, err)
	}

	e.dispatcher.ToRoom(msg.ChatID, events.MessageRestored{Message: msg})
	e.dispatcher.Broadcast(events.SidebarUpdate{})
	return msg, nil
}

// restoreChatFor removes userID from a chat's DeletedBy set, so a hidden
// chat reappears when a new message arrives in it.
func (e *Engine) restoreChatFor(ctx context.Context, chatID, userID string) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	_, err := e.store.UpdateChat(sctx, chatID, func(c *models.Chat) error {
		if !c.DeletedByUser(userID) {
			return errUnchanged
		}
		c.DeletedBy = models.RemoveFromSet(c.DeletedBy, userID)
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) && !errors.Is(err, ErrNotFound) {
		e.logger.Warn().Err(err).Str("chat", chatID).Str("user", userID).Msg("failed to restore chat visibility")
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
