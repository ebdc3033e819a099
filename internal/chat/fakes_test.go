package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

// memStore is a single in-memory state shared by the fake repositories so
// scenario tests exercise the real service flows end to end.
type memStore struct {
	mu sync.Mutex

	nextConvID int64
	nextMsgID  int64

	convs    map[int64]*models.Conversation
	msgs     map[int64]*models.Message
	queue    map[int64]map[int64]models.QueueEntry // userID -> messageID
	counters map[int64]*models.UserCounters
	profiles map[int64]models.Profile
	contacts map[int64]map[int64]int64 // userID -> contactID -> convID
}

func newMemStore() *memStore {
	return &memStore{
		convs:    make(map[int64]*models.Conversation),
		msgs:     make(map[int64]*models.Message),
		queue:    make(map[int64]map[int64]models.QueueEntry),
		counters: make(map[int64]*models.UserCounters),
		profiles: make(map[int64]models.Profile),
		contacts: make(map[int64]map[int64]int64),
	}
}

func (s *memStore) addProfile(id int64, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[id] = models.Profile{ID: id, Username: username}
}

func (s *memStore) counter(userID int64) *models.UserCounters {
	c, ok := s.counters[userID]
	if !ok {
		c = &models.UserCounters{UserID: userID}
		s.counters[userID] = c
	}
	return c
}

func (s *memStore) message(id int64) (*models.Message, bool) {
	m, ok := s.msgs[id]
	return m, ok
}

func copyMessage(m *models.Message) models.Message {
	out := *m
	out.To = append([]int64(nil), m.To...)
	out.Files = append([]models.FileRef(nil), m.Files...)
	out.Info.DeliveredTo = append([]int64(nil), m.Info.DeliveredTo...)
	out.Info.ReadBy = append([]int64(nil), m.Info.ReadBy...)
	out.Info.LikedBy = append([]int64(nil), m.Info.LikedBy...)
	return out
}

func copyConversation(c *models.Conversation) models.Conversation {
	out := *c
	out.Participants = append([]models.Participant(nil), c.Participants...)
	return out
}

func appendMissing(ids []int64, id int64) []int64 {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

type fakeConversationRepo struct{ s *memStore }

func (r *fakeConversationRepo) Create(ctx context.Context, userID, peerID int64) (models.Conversation, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[userID][peerID]; ok {
		return models.Conversation{}, repositories.ErrConversationExists
	}
	s.nextConvID++
	conv := &models.Conversation{
		ID:        s.nextConvID,
		CreatedAt: time.Now(),
		Participants: []models.Participant{
			{ConversationID: s.nextConvID, UserID: userID},
			{ConversationID: s.nextConvID, UserID: peerID},
		},
	}
	s.convs[conv.ID] = conv
	for _, pair := range [][2]int64{{userID, peerID}, {peerID, userID}} {
		if s.contacts[pair[0]] == nil {
			s.contacts[pair[0]] = make(map[int64]int64)
		}
		s.contacts[pair[0]][pair[1]] = conv.ID
	}
	return copyConversation(conv), nil
}

func (r *fakeConversationRepo) Get(ctx context.Context, convID int64) (models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.convs[convID]
	if !ok {
		return models.Conversation{}, repositories.ErrConversationNotFound
	}
	return copyConversation(conv), nil
}

func (r *fakeConversationRepo) ListForUser(ctx context.Context, userID int64, page, pageSize int) ([]repositories.ConversationListRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rows := []repositories.ConversationListRow{}
	for _, conv := range r.s.convs {
		part := conv.Participant(userID)
		if part == nil {
			continue
		}
		row := repositories.ConversationListRow{ID: conv.ID, Unread: part.UnreadCount, UpdatedAt: conv.UpdatedAt}
		for _, p := range conv.Participants {
			if p.UserID != userID {
				row.PeerID = p.UserID
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].UpdatedAt, rows[j].UpdatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	start := (page - 1) * pageSize
	if start >= len(rows) {
		return []repositories.ConversationListRow{}, nil
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], nil
}

func (r *fakeConversationRepo) Touch(ctx context.Context, convID int64, at *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if conv, ok := r.s.convs[convID]; ok {
		conv.UpdatedAt = at
	}
	return nil
}

func (r *fakeConversationRepo) IncrementUnread(ctx context.Context, convID int64, userIDs []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.convs[convID]
	if !ok {
		return nil
	}
	for _, id := range userIDs {
		if p := conv.Participant(id); p != nil {
			p.UnreadCount++
		}
	}
	return nil
}

func (r *fakeConversationRepo) DecrementUnread(ctx context.Context, convID, userID int64, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if conv, ok := r.s.convs[convID]; ok {
		if p := conv.Participant(userID); p != nil {
			p.UnreadCount -= delta
			if p.UnreadCount < 0 {
				p.UnreadCount = 0
			}
		}
	}
	return nil
}

func (r *fakeConversationRepo) ZeroUnread(ctx context.Context, convID, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if conv, ok := r.s.convs[convID]; ok {
		if p := conv.Participant(userID); p != nil {
			p.UnreadCount = 0
		}
	}
	return nil
}

func (r *fakeConversationRepo) AdvanceCursor(ctx context.Context, convID, userID, lastMessageID int64, readCount int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if conv, ok := r.s.convs[convID]; ok {
		if p := conv.Participant(userID); p != nil {
			if p.LastReadMessageID == nil || *p.LastReadMessageID < lastMessageID {
				cursor := lastMessageID
				p.LastReadMessageID = &cursor
			}
			p.UnreadCount -= readCount
			if p.UnreadCount < 0 {
				p.UnreadCount = 0
			}
		}
	}
	return nil
}

func (r *fakeConversationRepo) SetCursor(ctx context.Context, convID, userID, messageID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if conv, ok := r.s.convs[convID]; ok {
		if p := conv.Participant(userID); p != nil {
			if p.LastReadMessageID == nil || *p.LastReadMessageID < messageID {
				cursor := messageID
				p.LastReadMessageID = &cursor
			}
		}
	}
	return nil
}

func (r *fakeConversationRepo) Delete(ctx context.Context, convID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.convs, convID)
	for id, m := range r.s.msgs {
		if m.ConversationID == convID {
			delete(r.s.msgs, id)
		}
	}
	return nil
}

func (r *fakeConversationRepo) ContactIDs(ctx context.Context, userID int64) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := []int64{}
	for id := range r.s.contacts[userID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *fakeConversationRepo) RemoveContacts(ctx context.Context, convID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for userID, m := range r.s.contacts {
		for contactID, cID := range m {
			if cID == convID {
				delete(r.s.contacts[userID], contactID)
			}
		}
	}
	return nil
}

type fakeMessageRepo struct{ s *memStore }

func (r *fakeMessageRepo) Create(ctx context.Context, p repositories.CreateMessageParams) (models.Message, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMsgID++
	msg := &models.Message{
		ID:             s.nextMsgID,
		ConversationID: p.ConversationID,
		SenderID:       p.SenderID,
		Text:           p.Text,
		ReplyTo:        p.ReplyTo,
		CreatedAt:      time.Now(),
		Files:          append([]models.FileRef(nil), p.Files...),
		To:             append([]int64(nil), p.Recipients...),
		Info: models.DeliveryInfo{
			DeliveredTo: append([]int64(nil), p.DeliveredTo...),
			ReadBy:      []int64{p.SenderID},
		},
	}
	msg.Info.DeliveredTo = appendMissing(msg.Info.DeliveredTo, p.SenderID)
	s.msgs[msg.ID] = msg
	return copyMessage(msg), nil
}

func (r *fakeMessageRepo) Get(ctx context.Context, messageID int64) (models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.message(messageID)
	if !ok {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	return copyMessage(m), nil
}

func (r *fakeMessageRepo) visibleSorted(convID, userID int64) []*models.Message {
	out := []*models.Message{}
	for _, m := range r.s.msgs {
		if m.ConversationID == convID && m.Addressed(userID) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeMessageRepo) ListPageForUser(ctx context.Context, convID, userID int64, page, pageSize int) ([]models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.visibleSorted(convID, userID)
	// newest first
	out := []models.Message{}
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, copyMessage(all[i]))
	}
	start := (page - 1) * pageSize
	if start >= len(out) {
		return []models.Message{}, nil
	}
	end := start + pageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

func (r *fakeMessageRepo) LastForUser(ctx context.Context, convID, userID int64) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.visibleSorted(convID, userID)
	if len(all) == 0 {
		return nil, nil
	}
	m := copyMessage(all[len(all)-1])
	return &m, nil
}

func (r *fakeMessageRepo) UnreadAfter(ctx context.Context, convID, userID, afterID int64) ([]models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Message{}
	for _, m := range r.visibleSorted(convID, userID) {
		if m.ID > afterID {
			out = append(out, copyMessage(m))
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) MarkRead(ctx context.Context, messageIDs []int64, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range messageIDs {
		if m, ok := r.s.message(id); ok {
			m.Info.DeliveredTo = appendMissing(m.Info.DeliveredTo, userID)
			m.Info.ReadBy = appendMissing(m.Info.ReadBy, userID)
		}
	}
	return nil
}

func (r *fakeMessageRepo) MarkDelivered(ctx context.Context, messageIDs []int64, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range messageIDs {
		if m, ok := r.s.message(id); ok {
			m.Info.DeliveredTo = appendMissing(m.Info.DeliveredTo, userID)
		}
	}
	return nil
}

func (r *fakeMessageRepo) ToggleLike(ctx context.Context, messageID, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.message(messageID)
	if !ok || !m.Addressed(userID) {
		return false, repositories.ErrMessageNotFound
	}
	if m.IsLikedBy(userID) {
		m.Info.LikedBy = removeID(m.Info.LikedBy, userID)
		return false, nil
	}
	m.Info.LikedBy = append(m.Info.LikedBy, userID)
	return true, nil
}

func (r *fakeMessageRepo) RemoveRecipient(ctx context.Context, messageID, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.message(messageID); ok {
		m.To = removeID(m.To, userID)
		m.Info.DeliveredTo = removeID(m.Info.DeliveredTo, userID)
		m.Info.ReadBy = removeID(m.Info.ReadBy, userID)
		m.Info.LikedBy = removeID(m.Info.LikedBy, userID)
	}
	return nil
}

func (r *fakeMessageRepo) Delete(ctx context.Context, messageID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.msgs, messageID)
	return nil
}

func (r *fakeMessageRepo) DeleteAll(ctx context.Context, convID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, m := range r.s.msgs {
		if m.ConversationID == convID {
			delete(r.s.msgs, id)
		}
	}
	return nil
}

func (r *fakeMessageRepo) DeleteWhereSoleRecipient(ctx context.Context, convID, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, m := range r.s.msgs {
		if m.ConversationID == convID && len(m.To) == 1 && m.To[0] == userID {
			delete(r.s.msgs, id)
		}
	}
	return nil
}

func (r *fakeMessageRepo) StripRecipient(ctx context.Context, convID, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.msgs {
		if m.ConversationID == convID {
			m.To = removeID(m.To, userID)
			m.Info.DeliveredTo = removeID(m.Info.DeliveredTo, userID)
			m.Info.ReadBy = removeID(m.Info.ReadBy, userID)
			m.Info.LikedBy = removeID(m.Info.LikedBy, userID)
		}
	}
	return nil
}

func (r *fakeMessageRepo) Newest(ctx context.Context, convID int64) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var newest *models.Message
	for _, m := range r.s.msgs {
		if m.ConversationID != convID {
			continue
		}
		if newest == nil || m.ID > newest.ID {
			newest = m
		}
	}
	if newest == nil {
		return nil, nil
	}
	m := copyMessage(newest)
	return &m, nil
}

type fakeQueueRepo struct{ s *memStore }

func (r *fakeQueueRepo) Enqueue(ctx context.Context, userID, convID, messageID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.queue[userID] == nil {
		r.s.queue[userID] = make(map[int64]models.QueueEntry)
	}
	if _, ok := r.s.queue[userID][messageID]; !ok {
		r.s.queue[userID][messageID] = models.QueueEntry{
			UserID:         userID,
			ConversationID: convID,
			MessageID:      messageID,
			QueuedAt:       time.Now(),
		}
	}
	return nil
}

func (r *fakeQueueRepo) take(userID int64, match func(models.QueueEntry) bool) []models.QueueEntry {
	out := []models.QueueEntry{}
	for id, e := range r.s.queue[userID] {
		if match(e) {
			out = append(out, e)
			delete(r.s.queue[userID], id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out
}

func (r *fakeQueueRepo) TakeForUser(ctx context.Context, userID int64) ([]models.QueueEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.take(userID, func(models.QueueEntry) bool { return true }), nil
}

func (r *fakeQueueRepo) TakeForConversation(ctx context.Context, userID, convID int64) ([]models.QueueEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.take(userID, func(e models.QueueEntry) bool { return e.ConversationID == convID }), nil
}

func (r *fakeQueueRepo) Remove(ctx context.Context, userID, messageID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.queue[userID], messageID)
	return nil
}

func (r *fakeQueueRepo) PurgeConversation(ctx context.Context, convID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for userID := range r.s.queue {
		for id, e := range r.s.queue[userID] {
			if e.ConversationID == convID {
				delete(r.s.queue[userID], id)
			}
		}
	}
	return nil
}

func (r *fakeQueueRepo) PurgeConversationForUser(ctx context.Context, convID, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, e := range r.s.queue[userID] {
		if e.ConversationID == convID {
			delete(r.s.queue[userID], id)
		}
	}
	return nil
}

type fakeCounterRepo struct{ s *memStore }

func (r *fakeCounterRepo) AddUnreadMessages(ctx context.Context, userID int64, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.counter(userID)
	c.UnreadMessages += delta
	if c.UnreadMessages < 0 {
		c.UnreadMessages = 0
	}
	return nil
}

func (r *fakeCounterRepo) AddUnreadNotifications(ctx context.Context, userID int64, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.counter(userID)
	c.UnreadNotifications += delta
	if c.UnreadNotifications < 0 {
		c.UnreadNotifications = 0
	}
	return nil
}

func (r *fakeCounterRepo) Get(ctx context.Context, userID int64) (models.UserCounters, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return *r.s.counter(userID), nil
}

type fakeProfileRepo struct{ s *memStore }

func (r *fakeProfileRepo) Get(ctx context.Context, id int64) (models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return models.Profile{}, repositories.ErrProfileNotFound
	}
	return p, nil
}

func (r *fakeProfileRepo) GetMany(ctx context.Context, ids []int64) (map[int64]models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[int64]models.Profile, len(ids))
	for _, id := range ids {
		if p, ok := r.s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

var (
	_ repositories.ConversationRepository = (*fakeConversationRepo)(nil)
	_ repositories.MessageRepository      = (*fakeMessageRepo)(nil)
	_ repositories.QueueRepository        = (*fakeQueueRepo)(nil)
	_ repositories.CounterRepository      = (*fakeCounterRepo)(nil)
	_ repositories.ProfileRepository      = (*fakeProfileRepo)(nil)
)
