package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/api/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const conversationCols = `id, participant_a, participant_b, last_message_text,
	last_message_sender_id, last_message_at, unread_a, unread_b, created_at, updated_at`

func scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.LastMessageText,
		&c.LastMessageSenderID, &c.LastMessageAt, &c.UnreadA, &c.UnreadB,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) CreateConversation(ctx context.Context, conv *Conversation) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO conversation (id, participant_a, participant_b)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO NOTHING`,
		conv.ID, conv.ParticipantA, conv.ParticipantB)
	return err
}

func (r *repoPG) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	return scanConversation(r.conn(ctx).QueryRow(ctx,
		`SELECT `+conversationCols+` FROM conversation WHERE id = $1`, id))
}

func (r *repoPG) ListConversations(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]*Conversation, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM conversation WHERE participant_a = $1 OR participant_b = $1`,
		participantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+conversationCols+` FROM conversation
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY last_message_at DESC NULLS LAST, created_at DESC
		LIMIT $2 OFFSET $3`, participantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *repoPG) SetLastMessage(ctx context.Context, conversationID, text string, senderID uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE conversation
		SET last_message_text=$2, last_message_sender_id=$3, last_message_at=$4, updated_at=NOW()
		WHERE id = $1`, conversationID, text, senderID, at)
	return err
}

func (r *repoPG) IncrementUnread(ctx context.Context, conversationID string, participantID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE conversation
		SET unread_a = unread_a + CASE WHEN participant_a = $2 THEN 1 ELSE 0 END,
		    unread_b = unread_b + CASE WHEN participant_b = $2 THEN 1 ELSE 0 END,
		    updated_at = NOW()
		WHERE id = $1`, conversationID, participantID)
	return err
}

func (r *repoPG) ResetUnread(ctx context.Context, conversationID string, participantID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE conversation
		SET unread_a = CASE WHEN participant_a = $2 THEN 0 ELSE unread_a END,
		    unread_b = CASE WHEN participant_b = $2 THEN 0 ELSE unread_b END,
		    updated_at = NOW()
		WHERE id = $1`, conversationID, participantID)
	return err
}

const messageCols = `id, conversation_id, sender_id, text, sent_at, read_by, is_deleted, deleted_for`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.SentAt,
		&m.ReadBy, &m.IsDeleted, &m.DeletedFor)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) CreateMessage(ctx context.Context, msg *Message) error {
	msg.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO message (id, conversation_id, sender_id, text)
		VALUES ($1,$2,$3,$4)
		RETURNING sent_at`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Text).Scan(&msg.SentAt)
}

func (r *repoPG) GetMessage(ctx context.Context, id uuid.UUID) (*Message, error) {
	return scanMessage(r.conn(ctx).QueryRow(ctx,
		`SELECT `+messageCols+` FROM message WHERE id = $1`, id))
}

func (r *repoPG) ListMessages(ctx context.Context, conversationID string, viewerID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM message
		WHERE conversation_id = $1 AND NOT ($2 = ANY(deleted_for))`,
		conversationID, viewerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+messageCols+` FROM message
		WHERE conversation_id = $1 AND NOT ($2 = ANY(deleted_for))
		ORDER BY sent_at DESC
		LIMIT $3 OFFSET $4`, conversationID, viewerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *repoPG) MarkMessagesRead(ctx context.Context, conversationID string, readerID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE message SET read_by = array_append(read_by, $2)
		WHERE conversation_id = $1 AND sender_id <> $2 AND NOT ($2 = ANY(read_by))`,
		conversationID, readerID)
	return err
}

func (r *repoPG) MarkDeletedFor(ctx context.Context, messageID uuid.UUID, participantID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE message SET deleted_for = array_append(deleted_for, $2)
		WHERE id = $1 AND NOT ($2 = ANY(deleted_for))`,
		messageID, participantID)
	return err
}

func (r *repoPG) DeleteForEveryone(ctx context.Context, messageID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE message SET text='', is_deleted=TRUE WHERE id = $1`, messageID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}
