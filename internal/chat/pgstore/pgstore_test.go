package pgstore

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estately/internal/chat"
	"github.com/estately/internal/database"
	"github.com/estately/internal/database/pgtest"
	"github.com/estately/internal/retry"
)

var (
	testPool   *pgxpool.Pool
	skipReason string
)

// TestMain starts PostgreSQL once for the package. Without Docker, or with
// -short, the integration tests skip instead of failing.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		skipReason = "integration test skipped in -short mode"
		os.Exit(m.Run())
	}

	ctx := context.Background()
	pg, err := pgtest.Start(ctx)
	if err != nil {
		skipReason = err.Error()
		os.Exit(m.Run())
	}

	testPool, err = database.NewPool(ctx, pg.URL, database.PoolOptions{MaxConns: 20, Connect: retry.ConnectPolicy()})
	if err == nil {
		err = database.Migrate(ctx, testPool)
	}
	if err != nil {
		_ = pg.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to prepare database: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	testPool.Close()
	_ = pg.Terminate(ctx)
	os.Exit(code)
}

func newStore(t *testing.T) *Store {
	t.Helper()
	if testPool == nil {
		t.Skip(skipReason)
	}
	_, err := testPool.Exec(context.Background(), `TRUNCATE messages, conversations, users`)
	require.NoError(t, err)
	return New(testPool)
}

var idSeq struct {
	sync.Mutex
	n int
}

func nextID(prefix string) string {
	idSeq.Lock()
	defer idSeq.Unlock()
	idSeq.n++
	return fmt.Sprintf("%s-%d", prefix, idSeq.n)
}

func conversation(a, b string) chat.Conversation {
	return chat.Conversation{
		ID:             nextID("conv"),
		ParticipantIDs: [2]string{a, b},
		CreatedAt:      time.Now().UTC(),
	}
}

func message(convID, author, text string, at time.Time) chat.Message {
	return chat.Message{
		ID:             nextID("msg"),
		ConversationID: convID,
		AuthorID:       author,
		Text:           text,
		CreatedAt:      at,
	}
}

func TestFindOrCreateConversation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	created, isNew, err := s.FindOrCreateConversation(ctx, conversation("bob", "alice"))
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, [2]string{"alice", "bob"}, created.ParticipantIDs)
	assert.Empty(t, created.SeenBy)
	assert.Nil(t, created.LastMessageAt)

	again, isNew, err := s.FindOrCreateConversation(ctx, conversation("alice", "bob"))
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, again.ID)
}

func TestFindOrCreateConversation_ConcurrentSinglePair(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	createdCount := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			conv, isNew, err := s.FindOrCreateConversation(ctx, conversation(a, b))
			errs[i] = err
			if err == nil {
				ids[i] = conv.ID
				createdCount[i] = isNew
			}
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
		if createdCount[i] {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	var rows int
	require.NoError(t, testPool.QueryRow(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestViewIsAdditiveAndMarkReadIsDestructive(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	conv, _, err := s.FindOrCreateConversation(ctx, conversation("alice", "bob"))
	require.NoError(t, err)

	_, updated, err := s.AppendMessage(ctx, message(conv.ID, "alice", "hi", time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, updated.SeenBy)

	viewed, msgs, err := s.ViewConversation(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, viewed.SeenBy)
	require.Len(t, msgs, 1)

	viewed, _, err = s.ViewConversation(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.Len(t, viewed.SeenBy, 2, "viewing twice must not duplicate")

	marked, err := s.MarkRead(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, marked.SeenBy)
}

func TestAppendMessage(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	conv, _, err := s.FindOrCreateConversation(ctx, conversation("alice", "bob"))
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	first, c1, err := s.AppendMessage(ctx, message(conv.ID, "alice", "first", at))
	require.NoError(t, err)
	assert.True(t, at.Equal(first.CreatedAt))
	assert.Equal(t, "first", c1.LastMessageText)

	// A skewed clock must not place the message before its predecessor
	second, c2, err := s.AppendMessage(ctx, message(conv.ID, "bob", "second", at.Add(-time.Minute)))
	require.NoError(t, err)
	assert.True(t, at.Equal(second.CreatedAt))
	assert.Greater(t, second.Seq, first.Seq)
	assert.Equal(t, []string{"bob"}, c2.SeenBy)
	require.NotNil(t, c2.LastMessageAt)
	assert.True(t, at.Equal(*c2.LastMessageAt))

	_, msgs, err := s.ViewConversation(ctx, conv.ID, "alice")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text)
	assert.Equal(t, "second", msgs[1].Text)
}

func TestAppendMessage_ConcurrentSendsKeepOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	conv, _, err := s.FindOrCreateConversation(ctx, conversation("alice", "bob"))
	require.NoError(t, err)

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			author := "alice"
			if i%2 == 0 {
				author = "bob"
			}
			_, _, err := s.AppendMessage(ctx, message(conv.ID, author, fmt.Sprintf("m%d", i), time.Now().UTC()))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	viewed, msgs, err := s.ViewConversation(ctx, conv.ID, "alice")
	require.NoError(t, err)
	require.Len(t, msgs, n)
	for i := 1; i < n; i++ {
		assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
		assert.Greater(t, msgs[i].Seq, msgs[i-1].Seq)
	}
	assert.Equal(t, msgs[n-1].Text, viewed.LastMessageText)
}

func TestNonParticipantAndMissingConversation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	conv, _, err := s.FindOrCreateConversation(ctx, conversation("alice", "bob"))
	require.NoError(t, err)

	_, _, err = s.AppendMessage(ctx, message(conv.ID, "mallory", "hi", time.Now().UTC()))
	assert.ErrorIs(t, err, chat.ErrNotFound)
	_, _, err = s.AppendMessage(ctx, message("missing", "mallory", "hi", time.Now().UTC()))
	assert.ErrorIs(t, err, chat.ErrNotFound)
	_, _, err = s.ViewConversation(ctx, conv.ID, "mallory")
	assert.ErrorIs(t, err, chat.ErrNotFound)
	_, err = s.MarkRead(ctx, conv.ID, "mallory")
	assert.ErrorIs(t, err, chat.ErrNotFound)
	_, err = s.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, chat.ErrNotFound)

	var count int
	require.NoError(t, testPool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count))
	assert.Zero(t, count)
}

func TestListAndCountUnread(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	ab := conversation("alice", "bob")
	ab.CreatedAt = base
	cb := conversation("carol", "bob")
	cb.CreatedAt = base.Add(time.Minute)
	convAB, _, err := s.FindOrCreateConversation(ctx, ab)
	require.NoError(t, err)
	convCB, _, err := s.FindOrCreateConversation(ctx, cb)
	require.NoError(t, err)

	list, err := s.ListConversations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, convCB.ID, list[0].ID)

	_, _, err = s.AppendMessage(ctx, message(convAB.ID, "alice", "ping", base.Add(2*time.Minute)))
	require.NoError(t, err)
	list, err = s.ListConversations(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, convAB.ID, list[0].ID, "most recently active first")

	n, err := s.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, _, err = s.ViewConversation(ctx, convAB.ID, "bob")
	require.NoError(t, err)
	_, err = s.MarkRead(ctx, convCB.ID, "bob")
	require.NoError(t, err)

	n, err = s.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.CountUnread(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	empty, err := s.ListConversations(ctx, "zoe")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestServiceOnPostgres(t *testing.T) {
	s := newStore(t)
	svc := chat.NewService(s, nil)
	ctx := context.Background()

	conv, created, err := svc.OpenConversation(ctx, chat.OpenConversationInput{ActorID: "alice", ReceiverID: "bob"})
	require.NoError(t, err)
	assert.True(t, created)

	_, err = svc.SendMessage(ctx, chat.SendMessageInput{ConversationID: conv.ID, ActorID: "alice", Text: "hi"})
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	detail, err := svc.GetConversation(ctx, chat.ConversationInput{ConversationID: conv.ID, ActorID: "bob"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, detail.SeenBy)

	_, err = svc.SendMessage(ctx, chat.SendMessageInput{ConversationID: conv.ID, ActorID: "mallory", Text: "hi"})
	assert.Equal(t, chat.KindNotFound, chat.KindOf(err))
}

func TestCancelledContextIsStoreUnavailable(t *testing.T) {
	if testPool == nil {
		t.Skip(skipReason)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testPool).CountUnread(ctx, "alice")
	assert.ErrorIs(t, err, chat.ErrStoreUnavailable)
}
