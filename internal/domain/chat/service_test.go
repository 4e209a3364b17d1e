package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/api/internal/platform/realtime"
)

type mockRepo struct {
	conversations map[string]*Conversation
	messages      map[uuid.UUID]*Message
}

func newMockRepo() *mockRepo {
	return &mockRepo{conversations: make(map[string]*Conversation), messages: make(map[uuid.UUID]*Message)}
}

func (m *mockRepo) CreateConversation(ctx context.Context, conv *Conversation) error {
	if _, ok := m.conversations[conv.ID]; ok {
		return nil
	}
	conv.CreatedAt = time.Now()
	m.conversations[conv.ID] = conv
	return nil
}

func (m *mockRepo) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

func (m *mockRepo) ListConversations(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*Conversation, int, error) {
	var items []*Conversation
	for _, conv := range m.conversations {
		if conv.HasParticipant(participantID) {
			items = append(items, conv)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) SetLastMessage(ctx context.Context, conversationID, text string, senderID uuid.UUID, at time.Time) error {
	conv := m.conversations[conversationID]
	conv.LastMessageText = &text
	conv.LastMessageSenderID = &senderID
	conv.LastMessageAt = &at
	return nil
}

func (m *mockRepo) IncrementUnread(ctx context.Context, conversationID string, participantID uuid.UUID) error {
	conv := m.conversations[conversationID]
	if conv.ParticipantA == participantID {
		conv.UnreadA++
	} else {
		conv.UnreadB++
	}
	return nil
}

func (m *mockRepo) ResetUnread(ctx context.Context, conversationID string, participantID uuid.UUID) error {
	conv := m.conversations[conversationID]
	if conv.ParticipantA == participantID {
		conv.UnreadA = 0
	} else {
		conv.UnreadB = 0
	}
	return nil
}

func (m *mockRepo) CreateMessage(ctx context.Context, msg *Message) error {
	msg.ID = uuid.New()
	msg.SentAt = time.Now()
	m.messages[msg.ID] = msg
	return nil
}

func (m *mockRepo) GetMessage(ctx context.Context, id uuid.UUID) (*Message, error) {
	msg, ok := m.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

func (m *mockRepo) ListMessages(ctx context.Context, conversationID string, viewerID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	var items []*Message
	for _, msg := range m.messages {
		if msg.ConversationID != conversationID {
			continue
		}
		hidden := false
		for _, id := range msg.DeletedFor {
			if id == viewerID {
				hidden = true
			}
		}
		if !hidden {
			items = append(items, msg)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) MarkMessagesRead(ctx context.Context, conversationID string, readerID uuid.UUID) error {
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.SenderID != readerID {
			msg.ReadBy = append(msg.ReadBy, readerID)
		}
	}
	return nil
}

func (m *mockRepo) MarkDeletedFor(ctx context.Context, messageID uuid.UUID, participantID uuid.UUID) error {
	msg, ok := m.messages[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	msg.DeletedFor = append(msg.DeletedFor, participantID)
	return nil
}

func (m *mockRepo) DeleteForEveryone(ctx context.Context, messageID uuid.UUID) error {
	msg, ok := m.messages[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	msg.Text = ""
	msg.IsDeleted = true
	return nil
}

type mockMembership struct{ linked map[[2]uuid.UUID]bool }

func (m *mockMembership) IsMember(ctx context.Context, ownerID, memberID uuid.UUID) (bool, error) {
	return m.linked[[2]uuid.UUID{ownerID, memberID}], nil
}

type mockTx struct{}

func (mockTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type mockNotifier struct{ kinds []string }

func (m *mockNotifier) Notify(ctx context.Context, recipientID, senderID uuid.UUID, kind, title, message string) error {
	m.kinds = append(m.kinds, kind)
	return nil
}

type mockPublisher struct{ events []realtime.Event }

func (m *mockPublisher) Publish(ev realtime.Event) { m.events = append(m.events, ev) }

type testEnv struct {
	svc      *Service
	repo     *mockRepo
	notifier *mockNotifier
	pub      *mockPublisher
	u1, u2   uuid.UUID
}

func newTestEnv() *testEnv {
	repo := newMockRepo()
	u1, u2 := uuid.New(), uuid.New()
	membership := &mockMembership{linked: map[[2]uuid.UUID]bool{
		{u1, u2}: true,
		{u2, u1}: true,
	}}
	notifier := &mockNotifier{}
	pub := &mockPublisher{}
	svc := NewService(repo, membership, mockTx{}, notifier, pub)
	return &testEnv{svc: svc, repo: repo, notifier: notifier, pub: pub, u1: u1, u2: u2}
}

func TestConversationIDFor_OrderIndependent(t *testing.T) {
	for i := 0; i < 20; i++ {
		a, b := uuid.New(), uuid.New()
		if ConversationIDFor(a, b) != ConversationIDFor(b, a) {
			t.Fatalf("conversation ID depends on argument order for %s, %s", a, b)
		}
	}
	a, b := uuid.New(), uuid.New()
	id := ConversationIDFor(a, b)
	x, y := SortParticipants(a, b)
	if id != x.String()+"_"+y.String() {
		t.Errorf("ID %s does not match sorted participants %s, %s", id, x, y)
	}
}

func TestEnsureConversation(t *testing.T) {
	env := newTestEnv()

	conv, err := env.svc.EnsureConversation(context.Background(), env.u1, env.u2)
	if err != nil {
		t.Fatalf("EnsureConversation failed: %v", err)
	}
	if conv.ID != ConversationIDFor(env.u1, env.u2) {
		t.Errorf("unexpected conversation ID %s", conv.ID)
	}

	again, err := env.svc.EnsureConversation(context.Background(), env.u2, env.u1)
	if err != nil {
		t.Fatalf("second EnsureConversation failed: %v", err)
	}
	if again.ID != conv.ID {
		t.Errorf("same pair produced two conversations: %s vs %s", conv.ID, again.ID)
	}
	if len(env.repo.conversations) != 1 {
		t.Errorf("expected exactly one conversation row, got %d", len(env.repo.conversations))
	}
}

func TestEnsureConversation_RequiresFamilyLink(t *testing.T) {
	env := newTestEnv()
	stranger := uuid.New()

	if _, err := env.svc.EnsureConversation(context.Background(), env.u1, stranger); err != ErrNotFamily {
		t.Errorf("expected ErrNotFamily, got %v", err)
	}
	if _, err := env.svc.EnsureConversation(context.Background(), env.u1, env.u1); err == nil {
		t.Error("expected error for self conversation")
	}
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv()
	conv, _ := env.svc.EnsureConversation(context.Background(), env.u1, env.u2)

	msg, err := env.svc.SendMessage(context.Background(), conv.ID, env.u1, "hello")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if msg.ID == uuid.Nil || msg.SentAt.IsZero() {
		t.Errorf("message not persisted: %+v", msg)
	}

	stored := env.repo.conversations[conv.ID]
	if stored.LastMessageText == nil || *stored.LastMessageText != "hello" {
		t.Errorf("lastMessage preview not updated")
	}
	if stored.UnreadFor(env.u2) != 1 {
		t.Errorf("recipient unread = %d, want exactly 1", stored.UnreadFor(env.u2))
	}
	if stored.UnreadFor(env.u1) != 0 {
		t.Errorf("sender unread = %d, want 0", stored.UnreadFor(env.u1))
	}

	if len(env.pub.events) != 1 || env.pub.events[0].Type != realtime.EventMessageNew {
		t.Fatalf("expected one message event, got %v", env.pub.events)
	}
	if env.pub.events[0].Topic != realtime.ConversationTopic(conv.ID) {
		t.Errorf("event on wrong topic %s", env.pub.events[0].Topic)
	}
	if len(env.notifier.kinds) != 1 || env.notifier.kinds[0] != "chat_message" {
		t.Errorf("expected chat_message notification, got %v", env.notifier.kinds)
	}
}

func TestSendMessage_CounterIncrementsPerMessage(t *testing.T) {
	env := newTestEnv()
	conv, _ := env.svc.EnsureConversation(context.Background(), env.u1, env.u2)

	for i := 0; i < 3; i++ {
		if _, err := env.svc.SendMessage(context.Background(), conv.ID, env.u1, "ping"); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	}
	if got := env.repo.conversations[conv.ID].UnreadFor(env.u2); got != 3 {
		t.Errorf("recipient unread = %d, want 3", got)
	}
}

func TestSendMessage_Guards(t *testing.T) {
	env := newTestEnv()
	conv, _ := env.svc.EnsureConversation(context.Background(), env.u1, env.u2)

	if _, err := env.svc.SendMessage(context.Background(), conv.ID, env.u1, "   "); err != ErrEmptyMessage {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := env.svc.SendMessage(context.Background(), conv.ID, uuid.New(), "hi"); err != ErrNotParticipant {
		t.Errorf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := env.svc.SendMessage(context.Background(), "missing", env.u1, "hi"); err != ErrConversationNotFound {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv()
	conv, _ := env.svc.EnsureConversation(context.Background(), env.u1, env.u2)
	if _, err := env.svc.SendMessage(context.Background(), conv.ID, env.u1, "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if err := env.svc.MarkRead(context.Background(), conv.ID, env.u2); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if got := env.repo.conversations[conv.ID].UnreadFor(env.u2); got != 0 {
		t.Errorf("unread = %d after MarkRead, want 0", got)
	}
	for _, msg := range env.repo.messages {
		if len(msg.ReadBy) != 1 || msg.ReadBy[0] != env.u2 {
			t.Errorf("message not stamped read: %+v", msg)
		}
	}

	if err := env.svc.MarkRead(context.Background(), conv.ID, uuid.New()); err != ErrNotParticipant {
		t.Errorf("expected ErrNotParticipant, got %v", err)
	}
}

func TestDeleteForMe(t *testing.T) {
	env := newTestEnv()
	conv, _ := env.svc.EnsureConversation(context.Background(), env.u1, env.u2)
	msg, _ := env.svc.SendMessage(context.Background(), conv.ID, env.u1, "secret")

	if err := env.svc.DeleteForMe(context.Background(), msg.ID, env.u2); err != nil {
		t.Fatalf("DeleteForMe failed: %v", err)
	}

	forU2, _, _ := env.svc.ListMessages(context.Background(), conv.ID, env.u2, 20, 0)
	if len(forU2) != 0 {
		t.Errorf("deleter still sees the message")
	}
	forU1, _, _ := env.svc.ListMessages(context.Background(), conv.ID, env.u1, 20, 0)
	if len(forU1) != 1 || forU1[0].Text != "secret" {
		t.Errorf("other participant lost the message: %v", forU1)
	}
}

func TestDeleteForEveryone(t *testing.T) {
	env := newTestEnv()
	conv, _ := env.svc.EnsureConversation(context.Background(), env.u1, env.u2)
	msg, _ := env.svc.SendMessage(context.Background(), conv.ID, env.u1, "oops")

	if err := env.svc.DeleteForEveryone(context.Background(), msg.ID, env.u2); err != ErrNotSender {
		t.Errorf("expected ErrNotSender for non-sender, got %v", err)
	}
	if err := env.svc.DeleteForEveryone(context.Background(), msg.ID, env.u1); err != nil {
		t.Fatalf("DeleteForEveryone failed: %v", err)
	}

	stored := env.repo.messages[msg.ID]
	if !stored.IsDeleted || stored.Text != "" {
		t.Errorf("message not soft deleted: %+v", stored)
	}
	last := env.pub.events[len(env.pub.events)-1]
	if last.Type != realtime.EventMessageDeleted {
		t.Errorf("expected deleted event, got %s", last.Type)
	}
}
