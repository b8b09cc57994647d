package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/splitbook/internal/metrics"
)

func testHub() *Hub {
	return NewHub(metrics.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, accountID string) *Client {
	return &Client{hub: hub, accountID: accountID, send: make(chan []byte, sendBufferSize)}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		require.NoError(t, json.Unmarshal(data, &got))
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
		return Message{}
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := testHub()
	c1 := mockClient(hub, "acct-1")
	c2 := mockClient(hub, "acct-1")
	c3 := mockClient(hub, "acct-2")

	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)
	assert.Equal(t, 3, hub.ClientCount())

	hub.Unregister(c1)
	assert.Equal(t, 2, hub.ClientCount())

	hub.Unregister(c1) // second unregister is a no-op
	hub.Unregister(c2)
	hub.Unregister(c3)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestNotifyOnlyReachesAffectedAccounts(t *testing.T) {
	hub := testHub()
	owner := mockClient(hub, "owner")
	ownerPhone := mockClient(hub, "owner")
	watcher := mockClient(hub, "watcher")
	stranger := mockClient(hub, "stranger")
	for _, c := range []*Client{owner, ownerPhone, watcher, stranger} {
		hub.Register(c)
	}

	hub.Notify([]string{"owner", "watcher"}, "expense", "updated", "rent")

	for _, c := range []*Client{owner, ownerPhone, watcher} {
		got := receive(t, c)
		assert.Equal(t, "expense_updated", got.Type)
		assert.Equal(t, "rent", got.ID)
	}
	select {
	case <-stranger.send:
		t.Fatal("stranger should not be notified")
	default:
	}
}

func TestBroadcastFullBufferDrops(t *testing.T) {
	hub := testHub()
	c := mockClient(hub, "acct")
	hub.Register(c)

	for i := 0; i < sendBufferSize+1; i++ {
		hub.BroadcastTo([]string{"acct"}, NewMessage("group", "updated", "g"))
	}
	assert.Len(t, c.send, sendBufferSize)
	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("friend", "deleted", "bob")
	assert.Equal(t, Message{Type: "friend_deleted", Entity: "friend", Action: "deleted", ID: "bob"}, msg)
}

func TestConcurrentAccess(t *testing.T) {
	hub := testHub()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "acct")
			hub.Register(c)
			hub.Notify([]string{"acct"}, "expense", "updated", "e")
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, hub.ClientCount())
}
