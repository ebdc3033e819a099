package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"realtime-service/internal/delivery"
	"realtime-service/internal/models"
	"realtime-service/internal/presence"
	"realtime-service/internal/repositories"
)

const (
	// maxTextRunes is the ceiling on message text length, counted in runes.
	maxTextRunes = 100000
	// pageSize is the page length for conversation and message listings.
	pageSize = 10
)

// SendParams carries a new message from the transport layer.
type SendParams struct {
	ConversationID int64
	SenderID       int64
	Text           string
	Files          []models.FileRef
	ReplyTo        *int64
}

// API is the conversation and message surface consumed by HTTP handlers and
// the websocket layer.
type API interface {
	CreateConversation(ctx context.Context, actorID, peerID int64) (models.AddNewConversationEvent, error)
	ListConversations(ctx context.Context, userID int64, page int) ([]models.ConversationSummary, error)
	GetConversation(ctx context.Context, convID, userID int64, page int) (models.ConversationPage, error)
	SendMessage(ctx context.Context, p SendParams) (models.Message, error)
	MarkRead(ctx context.Context, convID, userID int64) ([]models.MessageInfo, error)
	ToggleLike(ctx context.Context, convID, messageID, userID int64) (models.Message, error)
	DeleteMessage(ctx context.Context, convID, messageID, userID int64, forEveryone bool) error
	Clear(ctx context.Context, convID, userID int64, forEveryone bool) error
	DeleteConversation(ctx context.Context, convID, userID int64) error
	Typing(ctx context.Context, convID, userID int64, isTyping bool) error
	FlushQueue(ctx context.Context, userID int64) error
	ContactIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Service implements API on top of the repositories and the fan-out engine.
// All mutating operations take a per-conversation lock so interleaved sends,
// reads and deletes cannot lose counter updates.
type Service struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	queue         repositories.QueueRepository
	counters      repositories.CounterRepository
	profiles      repositories.ProfileRepository
	engine        *delivery.Engine
	lastSeen      *presence.LastSeenStore
	locks         *keyedLock
}

// NewService wires the chat service.
func NewService(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	queue repositories.QueueRepository,
	counters repositories.CounterRepository,
	profiles repositories.ProfileRepository,
	engine *delivery.Engine,
	lastSeen *presence.LastSeenStore,
) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		queue:         queue,
		counters:      counters,
		profiles:      profiles,
		engine:        engine,
		lastSeen:      lastSeen,
		locks:         newKeyedLock(),
	}
}

var _ API = (*Service)(nil)

// contactFor builds the counterpart view: profile snapshot, registry-backed
// online flag and the stored last-seen timestamp.
func (s *Service) contactFor(ctx context.Context, convID, peerID int64) (models.Contact, error) {
	profile, err := s.profiles.Get(ctx, peerID)
	if err != nil {
		return models.Contact{}, err
	}
	return models.Contact{
		Profile:        profile,
		ConversationID: convID,
		Online:         s.engine.Registry().IsOnline(peerID),
		LastSeenAt:     s.lastSeen.Get(ctx, peerID),
	}, nil
}

// CreateConversation opens a conversation between the actor and the peer and
// announces it to both sides. The returned payload is the actor's view.
func (s *Service) CreateConversation(ctx context.Context, actorID, peerID int64) (models.AddNewConversationEvent, error) {
	if actorID == peerID {
		return models.AddNewConversationEvent{}, ErrSelfConversation
	}
	if _, err := s.profiles.Get(ctx, peerID); err != nil {
		if errors.Is(err, repositories.ErrProfileNotFound) {
			return models.AddNewConversationEvent{}, ErrNotFound
		}
		return models.AddNewConversationEvent{}, err
	}

	conv, err := s.conversations.Create(ctx, actorID, peerID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationExists) {
			return models.AddNewConversationEvent{}, ErrConversationExists
		}
		return models.AddNewConversationEvent{}, err
	}

	actorView, err := s.contactFor(ctx, conv.ID, peerID)
	if err != nil {
		return models.AddNewConversationEvent{}, err
	}
	peerView, err := s.contactFor(ctx, conv.ID, actorID)
	if err != nil {
		return models.AddNewConversationEvent{}, err
	}

	payload := models.AddNewConversationEvent{Conversation: conv, Contact: actorView}
	s.engine.Fanout(actorID, models.EventAddNewConversation, payload)
	s.engine.Fanout(peerID, models.EventAddNewConversation, models.AddNewConversationEvent{
		Conversation: conv,
		Contact:      peerView,
	})
	return payload, nil
}

// ListConversations returns one page of the user's conversations, newest
// activity first, each with the counterpart and the last visible message.
func (s *Service) ListConversations(ctx context.Context, userID int64, page int) ([]models.ConversationSummary, error) {
	rows, err := s.conversations.ListForUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}

	peerIDs := make([]int64, 0, len(rows))
	for _, row := range rows {
		peerIDs = append(peerIDs, row.PeerID)
	}
	profiles, err := s.profiles.GetMany(ctx, peerIDs)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		last, err := s.messages.LastForUser(ctx, row.ID, userID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, models.ConversationSummary{
			ID: row.ID,
			Contact: models.Contact{
				Profile:        profiles[row.PeerID],
				ConversationID: row.ID,
				Online:         s.engine.Registry().IsOnline(row.PeerID),
				LastSeenAt:     s.lastSeen.Get(ctx, row.PeerID),
			},
			LastMessage: last,
			UnreadCount: row.Unread,
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return summaries, nil
}

// GetConversation returns one page of messages visible to the user, newest
// first. Opening a conversation drains its queued backlog for the user and
// marks those messages delivered, announcing the receipts to participants.
func (s *Service) GetConversation(ctx context.Context, convID, userID int64, page int) (models.ConversationPage, error) {
	conv, err := s.getOwned(ctx, convID, userID)
	if err != nil {
		return models.ConversationPage{}, err
	}

	entries, err := s.queue.TakeForConversation(ctx, userID, convID)
	if err != nil {
		return models.ConversationPage{}, err
	}
	if len(entries) > 0 {
		if err := s.deliverQueued(ctx, conv, userID, entries); err != nil {
			return models.ConversationPage{}, err
		}
	}

	msgs, err := s.messages.ListPageForUser(ctx, convID, userID, page, pageSize)
	if err != nil {
		return models.ConversationPage{}, err
	}
	return models.ConversationPage{Conversation: conv, Messages: msgs}, nil
}

// SendMessage validates, persists and fans out a new message. Sending also
// reads the conversation for the sender: their cursor jumps to the new
// message, so anything unread before it is marked read first. Offline
// recipients get a queue entry instead of a push.
func (s *Service) SendMessage(ctx context.Context, p SendParams) (models.Message, error) {
	text := strings.TrimSpace(p.Text)
	if text == "" && len(p.Files) == 0 {
		return models.Message{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > maxTextRunes {
		return models.Message{}, ErrTooLong
	}

	unlock := s.locks.Lock(p.ConversationID)
	defer unlock()

	conv, err := s.getOwned(ctx, p.ConversationID, p.SenderID)
	if err != nil {
		return models.Message{}, err
	}

	// Clear the sender's backlog before the cursor jumps over it.
	if infos, err := s.markReadLocked(ctx, &conv, p.SenderID); err != nil {
		return models.Message{}, err
	} else if len(infos) > 0 {
		s.engine.FanoutMany(conv.ParticipantIDs(), models.EventUpdateConversation, models.UpdateConversationEvent{
			ConversationID: conv.ID,
			MessagesInfo:   infos,
		})
	}

	recipients := conv.ParticipantIDs()
	deliveredTo := make([]int64, 0, len(recipients))
	for _, id := range recipients {
		if id == p.SenderID || s.engine.Registry().IsOnline(id) {
			deliveredTo = append(deliveredTo, id)
		}
	}

	msg, err := s.messages.Create(ctx, repositories.CreateMessageParams{
		ConversationID: p.ConversationID,
		SenderID:       p.SenderID,
		Text:           text,
		Files:          p.Files,
		ReplyTo:        p.ReplyTo,
		Recipients:     recipients,
		DeliveredTo:    deliveredTo,
	})
	if err != nil {
		return models.Message{}, err
	}

	others := conv.RecipientIDs(p.SenderID)
	if err := s.conversations.IncrementUnread(ctx, conv.ID, others); err != nil {
		return models.Message{}, err
	}
	for _, id := range others {
		if err := s.counters.AddUnreadMessages(ctx, id, 1); err != nil {
			return models.Message{}, err
		}
	}
	if err := s.conversations.SetCursor(ctx, conv.ID, p.SenderID, msg.ID); err != nil {
		return models.Message{}, err
	}
	createdAt := msg.CreatedAt
	if err := s.conversations.Touch(ctx, conv.ID, &createdAt); err != nil {
		return models.Message{}, err
	}

	for _, part := range conv.Participants {
		unread := 0
		if part.UserID != p.SenderID {
			unread = part.UnreadCount + 1
		}
		payload := models.SendMessageEvent{
			ConversationID: conv.ID,
			Message:        msg,
			UnreadCount:    unread,
			UpdatedAt:      &createdAt,
		}
		if s.engine.Fanout(part.UserID, models.EventSendMessage, payload) {
			continue
		}
		if part.UserID != p.SenderID {
			if err := s.queue.Enqueue(ctx, part.UserID, conv.ID, msg.ID); err != nil {
				return models.Message{}, err
			}
		}
	}
	return msg, nil
}

// MarkRead advances the user's read cursor over every message addressed to
// them and currently unread, and announces the receipts. A second call with
// nothing unread is a no-op.
func (s *Service) MarkRead(ctx context.Context, convID, userID int64) ([]models.MessageInfo, error) {
	unlock := s.locks.Lock(convID)
	defer unlock()

	conv, err := s.getOwned(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	infos, err := s.markReadLocked(ctx, &conv, userID)
	if err != nil {
		return nil, err
	}
	if len(infos) > 0 {
		s.engine.FanoutMany(conv.ParticipantIDs(), models.EventUpdateConversation, models.UpdateConversationEvent{
			ConversationID: convID,
			MessagesInfo:   infos,
		})
	}
	return infos, nil
}

// markReadLocked performs the read transition for one participant. The
// caller holds the conversation lock.
func (s *Service) markReadLocked(ctx context.Context, conv *models.Conversation, userID int64) ([]models.MessageInfo, error) {
	part := conv.Participant(userID)
	var cursor int64
	if part.LastReadMessageID != nil {
		cursor = *part.LastReadMessageID
	}

	msgs, err := s.messages.UnreadAfter(ctx, conv.ID, userID, cursor)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(msgs))
	read := 0
	for _, m := range msgs {
		ids = append(ids, m.ID)
		if !m.IsReadBy(userID) {
			read++
		}
	}
	lastID := ids[len(ids)-1]

	if err := s.messages.MarkRead(ctx, ids, userID); err != nil {
		return nil, err
	}
	if err := s.conversations.AdvanceCursor(ctx, conv.ID, userID, lastID, read); err != nil {
		return nil, err
	}
	if read > 0 {
		if err := s.counters.AddUnreadMessages(ctx, userID, -read); err != nil {
			return nil, err
		}
	}
	// Reading implies the messages were observed; drop any queued copies.
	if err := s.queue.PurgeConversationForUser(ctx, conv.ID, userID); err != nil {
		return nil, err
	}

	part.LastReadMessageID = &lastID
	part.UnreadCount -= read
	if part.UnreadCount < 0 {
		part.UnreadCount = 0
	}

	infos := make([]models.MessageInfo, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsDeliveredTo(userID) {
			m.Info.DeliveredTo = append(m.Info.DeliveredTo, userID)
		}
		if !m.IsReadBy(userID) {
			m.Info.ReadBy = append(m.Info.ReadBy, userID)
		}
		infos = append(infos, models.MessageInfo{ID: m.ID, Info: m.Info})
	}
	return infos, nil
}

// ToggleLike flips the user's like on a message they can see and announces
// the new state to every participant.
func (s *Service) ToggleLike(ctx context.Context, convID, messageID, userID int64) (models.Message, error) {
	unlock := s.locks.Lock(convID)
	defer unlock()

	conv, err := s.getOwned(ctx, convID, userID)
	if err != nil {
		return models.Message{}, err
	}

	// Validate before mutating: a mismatched conversation must not leave
	// the like flipped.
	existing, err := s.messages.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, err
	}
	if existing.ConversationID != convID {
		return models.Message{}, ErrNotFound
	}

	if _, err := s.messages.ToggleLike(ctx, messageID, userID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, err
	}
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, err
	}

	now := time.Now().UTC()
	if err := s.conversations.Touch(ctx, convID, &now); err != nil {
		return models.Message{}, err
	}

	s.engine.FanoutMany(conv.ParticipantIDs(), models.EventMessageLikeToggle, models.MessageLikeToggleEvent{
		ConversationID: convID,
		Message:        msg,
		UpdatedAt:      &now,
	})
	return msg, nil
}

// DeleteMessage removes a message for the actor, or for everyone when the
// actor is the sender and asks for it. Removing the last recipient destroys
// the message outright. Unread counters and queued copies are settled before
// anything is destroyed.
func (s *Service) DeleteMessage(ctx context.Context, convID, messageID, userID int64, forEveryone bool) error {
	unlock := s.locks.Lock(convID)
	defer unlock()

	if _, err := s.getOwned(ctx, convID, userID); err != nil {
		return err
	}

	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return ErrNotFound
		}
		return err
	}
	if msg.ConversationID != convID || !msg.Addressed(userID) {
		return ErrNotFound
	}
	if forEveryone && msg.SenderID != userID {
		return ErrUnauthorized
	}

	destroy := forEveryone || len(msg.To) == 1
	if destroy {
		for _, id := range msg.To {
			if !msg.IsReadBy(id) {
				if err := s.conversations.DecrementUnread(ctx, convID, id, 1); err != nil {
					return err
				}
				if err := s.counters.AddUnreadMessages(ctx, id, -1); err != nil {
					return err
				}
			}
			if !msg.IsDeliveredTo(id) {
				if err := s.queue.Remove(ctx, id, messageID); err != nil {
					return err
				}
			}
		}
		if err := s.messages.Delete(ctx, messageID); err != nil {
			return err
		}
	} else {
		if err := s.messages.RemoveRecipient(ctx, messageID, userID); err != nil {
			return err
		}
		if !msg.IsReadBy(userID) {
			if err := s.conversations.DecrementUnread(ctx, convID, userID, 1); err != nil {
				return err
			}
			if err := s.counters.AddUnreadMessages(ctx, userID, -1); err != nil {
				return err
			}
		}
		if !msg.IsDeliveredTo(userID) {
			if err := s.queue.Remove(ctx, userID, messageID); err != nil {
				return err
			}
		}
	}

	updatedAt, err := s.refreshUpdatedAt(ctx, convID)
	if err != nil {
		return err
	}

	if forEveryone {
		after, err := s.conversations.Get(ctx, convID)
		if err != nil {
			return err
		}
		for _, part := range after.Participants {
			payload := models.DeleteMessageEvent{
				ConversationID: convID,
				MessageID:      messageID,
				UpdatedAt:      updatedAt,
			}
			if part.UserID != userID {
				unread := part.UnreadCount
				payload.UnreadCount = &unread
			}
			s.engine.Fanout(part.UserID, models.EventDeleteMessage, payload)
		}
	} else {
		s.engine.Fanout(userID, models.EventDeleteMessage, models.DeleteMessageEvent{
			ConversationID: convID,
			MessageID:      messageID,
			UpdatedAt:      updatedAt,
		})
	}
	return nil
}

// Clear empties the conversation. For everyone it deletes every message and
// zeroes every counter; for the actor alone it removes only their copies and
// leaves the other side untouched.
func (s *Service) Clear(ctx context.Context, convID, userID int64, forEveryone bool) error {
	unlock := s.locks.Lock(convID)
	defer unlock()

	conv, err := s.getOwned(ctx, convID, userID)
	if err != nil {
		return err
	}

	if forEveryone {
		for _, part := range conv.Participants {
			if part.UnreadCount > 0 {
				if err := s.counters.AddUnreadMessages(ctx, part.UserID, -part.UnreadCount); err != nil {
					return err
				}
			}
			if err := s.conversations.ZeroUnread(ctx, convID, part.UserID); err != nil {
				return err
			}
		}
		if err := s.messages.DeleteAll(ctx, convID); err != nil {
			return err
		}
		if err := s.queue.PurgeConversation(ctx, convID); err != nil {
			return err
		}
		if err := s.conversations.Touch(ctx, convID, nil); err != nil {
			return err
		}
		s.engine.FanoutMany(conv.ParticipantIDs(), models.EventClearConversation, models.ClearConversationEvent{
			ConversationID: convID,
		})
		return nil
	}

	part := conv.Participant(userID)
	if part.UnreadCount > 0 {
		if err := s.counters.AddUnreadMessages(ctx, userID, -part.UnreadCount); err != nil {
			return err
		}
	}
	if err := s.conversations.ZeroUnread(ctx, convID, userID); err != nil {
		return err
	}
	// Destroy messages only the actor could still see, then drop the
	// actor from the rest.
	if err := s.messages.DeleteWhereSoleRecipient(ctx, convID, userID); err != nil {
		return err
	}
	if err := s.messages.StripRecipient(ctx, convID, userID); err != nil {
		return err
	}
	if err := s.queue.PurgeConversationForUser(ctx, convID, userID); err != nil {
		return err
	}

	payload := models.ClearConversationEvent{ConversationID: convID}
	if others := conv.RecipientIDs(userID); len(others) > 0 {
		payload.ContactID = &others[0]
	}
	s.engine.Fanout(userID, models.EventClearConversation, payload)
	return nil
}

// DeleteConversation destroys the conversation for both sides: counters are
// settled, contact links removed and every participant told to drop it.
func (s *Service) DeleteConversation(ctx context.Context, convID, userID int64) error {
	unlock := s.locks.Lock(convID)
	defer unlock()

	conv, err := s.getOwned(ctx, convID, userID)
	if err != nil {
		return err
	}

	for _, part := range conv.Participants {
		if part.UnreadCount > 0 {
			if err := s.counters.AddUnreadMessages(ctx, part.UserID, -part.UnreadCount); err != nil {
				return err
			}
		}
	}
	for _, part := range conv.Participants {
		contactID := part.UserID
		if others := conv.RecipientIDs(part.UserID); len(others) > 0 {
			contactID = others[0]
		}
		s.engine.Fanout(part.UserID, models.EventDeleteConversation, models.DeleteConversationEvent{
			ConversationID: convID,
			ContactID:      contactID,
		})
	}

	if err := s.queue.PurgeConversation(ctx, convID); err != nil {
		return err
	}
	if err := s.conversations.RemoveContacts(ctx, convID); err != nil {
		return err
	}
	return s.conversations.Delete(ctx, convID)
}

// FlushQueue drains the user's whole undelivered backlog on reconnect,
// marking the surviving messages delivered and announcing the receipts per
// conversation. Entries whose message vanished in the meantime are dropped.
func (s *Service) FlushQueue(ctx context.Context, userID int64) error {
	entries, err := s.queue.TakeForUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	byConv := make(map[int64][]models.QueueEntry)
	order := make([]int64, 0)
	for _, e := range entries {
		if _, seen := byConv[e.ConversationID]; !seen {
			order = append(order, e.ConversationID)
		}
		byConv[e.ConversationID] = append(byConv[e.ConversationID], e)
	}

	for _, convID := range order {
		conv, err := s.conversations.Get(ctx, convID)
		if err != nil {
			if errors.Is(err, repositories.ErrConversationNotFound) {
				continue
			}
			return err
		}
		if err := s.deliverQueued(ctx, conv, userID, byConv[convID]); err != nil {
			return err
		}
	}
	return nil
}

// deliverQueued marks the queued messages delivered to the user and fans out
// the receipt update for the ones still present.
func (s *Service) deliverQueued(ctx context.Context, conv models.Conversation, userID int64, entries []models.QueueEntry) error {
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.MessageID)
	}
	if err := s.messages.MarkDelivered(ctx, ids, userID); err != nil {
		return err
	}

	infos := make([]models.MessageInfo, 0, len(ids))
	for _, id := range ids {
		msg, err := s.messages.Get(ctx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				continue
			}
			return err
		}
		infos = append(infos, models.MessageInfo{ID: msg.ID, Info: msg.Info})
	}
	if len(infos) > 0 {
		s.engine.FanoutMany(conv.ParticipantIDs(), models.EventUpdateConversation, models.UpdateConversationEvent{
			ConversationID: conv.ID,
			MessagesInfo:   infos,
		})
	}
	return nil
}

// Typing relays a transient typing signal to the other participants. It is
// never persisted.
func (s *Service) Typing(ctx context.Context, convID, userID int64, isTyping bool) error {
	conv, err := s.getOwned(ctx, convID, userID)
	if err != nil {
		return err
	}
	s.engine.FanoutMany(conv.RecipientIDs(userID), models.EventNotifyTyping, models.TypingEvent{
		ConversationID: convID,
		UserID:         userID,
		IsTyping:       isTyping,
	})
	return nil
}

// ContactIDs lists the users sharing a conversation with the given user.
func (s *Service) ContactIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.conversations.ContactIDs(ctx, userID)
}

// refreshUpdatedAt re-derives the conversation sort key from the newest
// surviving message, or clears it when none remain.
func (s *Service) refreshUpdatedAt(ctx context.Context, convID int64) (*time.Time, error) {
	newest, err := s.messages.Newest(ctx, convID)
	if err != nil {
		return nil, err
	}
	var at *time.Time
	if newest != nil {
		t := newest.CreatedAt
		at = &t
	}
	if err := s.conversations.Touch(ctx, convID, at); err != nil {
		return nil, err
	}
	return at, nil
}

// getOwned loads the conversation and verifies membership. Non-participants
// see the conversation as absent.
func (s *Service) getOwned(ctx context.Context, convID, userID int64) (models.Conversation, error) {
	conv, err := s.conversations.Get(ctx, convID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return models.Conversation{}, ErrNotFound
		}
		return models.Conversation{}, err
	}
	if conv.Participant(userID) == nil {
		return models.Conversation{}, ErrNotFound
	}
	return conv, nil
}
