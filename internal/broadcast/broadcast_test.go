package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversToOtherMembersOnly(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	a := hub.Join("idle")
	b := hub.Join("idle")
	other := hub.Join("elsewhere")

	var aGot, bGot, otherGot []Message
	a.OnMessage(func(m Message) { aGot = append(aGot, m) })
	b.OnMessage(func(m Message) { bGot = append(bGot, m) })
	other.OnMessage(func(m Message) { otherGot = append(otherGot, m) })

	require.NoError(t, a.Post(ctx, Message{Type: TypeReset}))

	assert.Empty(t, aGot)
	assert.Empty(t, otherGot)
	require.Len(t, bGot, 1)
	assert.Equal(t, TypeReset, bGot[0].Type)
	assert.NotEmpty(t, bGot[0].Sender)
}

func TestHub_CloseLeavesChannel(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()

	a := hub.Join("idle")
	b := hub.Join("idle")
	assert.Equal(t, 2, hub.Members("idle"))

	got := 0
	b.OnMessage(func(Message) { got++ })
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.Equal(t, 1, hub.Members("idle"))

	require.NoError(t, a.Post(ctx, Message{Type: TypeForceLogout}))
	assert.Zero(t, got)

	require.NoError(t, a.Close())
	assert.Zero(t, hub.Members("idle"))
}

func TestHub_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	a := hub.Join("idle")
	b := hub.Join("idle")

	got := 0
	unsubscribe := b.OnMessage(func(Message) { got++ })
	require.NoError(t, a.Post(ctx, Message{Type: TypeReset}))
	unsubscribe()
	require.NoError(t, a.Post(ctx, Message{Type: TypeReset}))

	assert.Equal(t, 1, got)
}

func TestNoop(t *testing.T) {
	ch := Noop()
	ch.OnMessage(func(Message) { t.Fatal("noop delivered a message") })
	assert.NoError(t, ch.Post(context.Background(), Message{Type: TypeReset}))
	assert.NoError(t, ch.Close())
}

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisChannel_SkipsOwnMessages(t *testing.T) {
	client := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	a, err := JoinRedis(ctx, client, "idle:s1")
	require.NoError(t, err)
	defer a.Close()
	b, err := JoinRedis(ctx, client, "idle:s1")
	require.NoError(t, err)
	defer b.Close()

	aGot := make(chan Message, 1)
	bGot := make(chan Message, 1)
	a.OnMessage(func(m Message) { aGot <- m })
	b.OnMessage(func(m Message) { bGot <- m })

	require.NoError(t, a.Post(ctx, Message{Type: TypeForceLogout}))

	select {
	case m := <-bGot:
		assert.Equal(t, TypeForceLogout, m.Type)
		assert.NotEmpty(t, m.Sender)
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}

	select {
	case <-aGot:
		t.Fatal("sender received its own message")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRedisChannel_SessionsDoNotCrossTalk(t *testing.T) {
	client := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	alice, err := JoinRedis(ctx, client, "idle:s-alice")
	require.NoError(t, err)
	defer alice.Close()
	aliceOther, err := JoinRedis(ctx, client, "idle:s-alice")
	require.NoError(t, err)
	defer aliceOther.Close()
	bob, err := JoinRedis(ctx, client, "idle:s-bob")
	require.NoError(t, err)
	defer bob.Close()

	aliceGot := make(chan Message, 1)
	bobGot := make(chan Message, 1)
	aliceOther.OnMessage(func(m Message) { aliceGot <- m })
	bob.OnMessage(func(m Message) { bobGot <- m })

	require.NoError(t, alice.Post(ctx, Message{Type: TypeReset}))

	select {
	case m := <-aliceGot:
		assert.Equal(t, TypeReset, m.Type)
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
	select {
	case <-bobGot:
		t.Fatal("message leaked to another session")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRedisChannel_CloseStopsDelivery(t *testing.T) {
	client := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	a, err := JoinRedis(ctx, client, "idle:s1")
	require.NoError(t, err)
	defer a.Close()
	b, err := JoinRedis(ctx, client, "idle:s1")
	require.NoError(t, err)

	b.OnMessage(func(Message) { t.Error("closed member received a message") })
	require.NoError(t, b.Close())

	require.NoError(t, a.Post(ctx, Message{Type: TypeReset}))
	time.Sleep(100 * time.Millisecond)
}
