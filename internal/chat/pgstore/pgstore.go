// Package pgstore implements chat.Store on PostgreSQL through pgx.
//
// Conversations keep their participants in canonical order (user_lo < user_hi)
// under a unique index, which makes find-or-create safe across instances.
// Read-state and message appends use conditional row-locking UPDATEs inside a
// transaction, so operations on one conversation are linearizable.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/estately/internal/chat"
)

const uniqueViolation = "23505"

const conversationColumns = `id, user_lo, user_hi, seen_by, last_message_text, last_message_at, created_at`

// Store is the PostgreSQL chat store
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store on top of an existing pool
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ chat.Store = (*Store)(nil)

// FindOrCreateConversation looks the pair up and inserts it when missing.
// A concurrent creator winning the race is detected by the ON CONFLICT clause
// (or a unique violation) and answered with a second lookup.
func (s *Store) FindOrCreateConversation(ctx context.Context, conv chat.Conversation) (*chat.Conversation, bool, error) {
	pair := chat.CanonicalPair(conv.ParticipantIDs[0], conv.ParticipantIDs[1])

	existing, err := s.findByPair(ctx, pair)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, unavailable("lookup conversation", err)
	}

	created, err := scanConversation(s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, user_lo, user_hi, seen_by, last_message_text, created_at)
		VALUES ($1, $2, $3, '{}', '', $4)
		ON CONFLICT (user_lo, user_hi) DO NOTHING
		RETURNING `+conversationColumns,
		conv.ID, pair[0], pair[1], conv.CreatedAt,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) && !isUniqueViolation(err) {
		return nil, false, unavailable("insert conversation", err)
	}

	log.Debug().
		Str("user_lo", pair[0]).
		Str("user_hi", pair[1]).
		Msg("Lost conversation creation race, reading winner")

	existing, err = s.findByPair(ctx, pair)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, chat.ErrPairConflict
		}
		return nil, false, unavailable("lookup conversation", err)
	}
	return existing, false, nil
}

func (s *Store) findByPair(ctx context.Context, pair [2]string) (*chat.Conversation, error) {
	return scanConversation(s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE user_lo = $1 AND user_hi = $2
	`, pair[0], pair[1]))
}

func (s *Store) ListConversations(ctx context.Context, actorID string) ([]chat.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE $1::text IN (user_lo, user_hi)
		ORDER BY COALESCE(last_message_at, created_at) DESC, id ASC
	`, actorID)
	if err != nil {
		return nil, unavailable("list conversations", err)
	}
	defer rows.Close()

	convs := make([]chat.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, unavailable("scan conversation", err)
		}
		convs = append(convs, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate conversations", err)
	}
	return convs, nil
}

func (s *Store) ViewConversation(ctx context.Context, conversationID, actorID string) (*chat.Conversation, []chat.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, unavailable("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	conv, err := scanConversation(tx.QueryRow(ctx, `
		UPDATE conversations
		SET seen_by = CASE
			WHEN $2::text = ANY(seen_by) THEN seen_by
			ELSE array_append(seen_by, $2::text)
		END
		WHERE id = $1 AND $2::text IN (user_lo, user_hi)
		RETURNING `+conversationColumns,
		conversationID, actorID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, chat.ErrNotFound
		}
		return nil, nil, unavailable("mark conversation seen", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT id, conversation_id, author_id, text, created_at, seq
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, seq ASC
	`, conversationID)
	if err != nil {
		return nil, nil, unavailable("query messages", err)
	}
	defer rows.Close()

	msgs := make([]chat.Message, 0)
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.AuthorID, &m.Text, &m.CreatedAt, &m.Seq); err != nil {
			return nil, nil, unavailable("scan message", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, unavailable("iterate messages", err)
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, unavailable("commit view", err)
	}
	return conv, msgs, nil
}

func (s *Store) MarkRead(ctx context.Context, conversationID, actorID string) (*chat.Conversation, error) {
	conv, err := scanConversation(s.pool.QueryRow(ctx, `
		UPDATE conversations
		SET seen_by = ARRAY[$2::text]
		WHERE id = $1 AND $2::text IN (user_lo, user_hi)
		RETURNING `+conversationColumns,
		conversationID, actorID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chat.ErrNotFound
		}
		return nil, unavailable("mark read", err)
	}
	return conv, nil
}

// AppendMessage locks the conversation row with the read-state update first,
// so concurrent sends to one conversation queue behind each other and get
// increasing sequence numbers and non-decreasing timestamps.
func (s *Store) AppendMessage(ctx context.Context, msg chat.Message) (*chat.Message, *chat.Conversation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, unavailable("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	conv, err := scanConversation(tx.QueryRow(ctx, `
		UPDATE conversations
		SET seen_by = ARRAY[$2::text],
		    last_message_text = $3,
		    last_message_at = GREATEST($4::timestamptz, last_message_at)
		WHERE id = $1 AND $2::text IN (user_lo, user_hi)
		RETURNING `+conversationColumns,
		msg.ConversationID, msg.AuthorID, msg.Text, msg.CreatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, chat.ErrNotFound
		}
		return nil, nil, unavailable("update conversation", err)
	}

	stored := msg
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, author_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq, created_at
	`, msg.ID, msg.ConversationID, msg.AuthorID, msg.Text, conv.LastMessageAt).Scan(&stored.Seq, &stored.CreatedAt)
	if err != nil {
		return nil, nil, unavailable("insert message", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, unavailable("commit message", err)
	}
	return &stored, conv, nil
}

func (s *Store) CountUnread(ctx context.Context, actorID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM conversations
		WHERE $1::text IN (user_lo, user_hi)
		  AND NOT ($1::text = ANY(seen_by))
	`, actorID).Scan(&n)
	if err != nil {
		return 0, unavailable("count unread", err)
	}
	return n, nil
}

func (s *Store) GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	conv, err := scanConversation(s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id = $1
	`, conversationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chat.ErrNotFound
		}
		return nil, unavailable("get conversation", err)
	}
	return conv, nil
}

func scanConversation(row pgx.Row) (*chat.Conversation, error) {
	var c chat.Conversation
	err := row.Scan(
		&c.ID,
		&c.ParticipantIDs[0],
		&c.ParticipantIDs[1],
		&c.SeenBy,
		&c.LastMessageText,
		&c.LastMessageAt,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if c.SeenBy == nil {
		c.SeenBy = []string{}
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", chat.ErrStoreUnavailable, op, err)
}
