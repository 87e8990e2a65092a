package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_SendToUser_OnlyMatchingClientsReceive(t *testing.T) {
	h := NewHub(zap.NewNop())
	targetID := uuid.New()
	otherID := uuid.New()

	target := &Client{send: make(chan []byte, 1), userID: targetID}
	other := &Client{send: make(chan []byte, 1), userID: otherID}
	h.clients[target] = true
	h.clients[other] = true

	go h.Run()
	defer h.Stop()

	h.SendToUser(targetID, []byte("only-target"))

	select {
	case msg := <-target.send:
		assert.Equal(t, "only-target", string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("target did not receive message")
	}

	select {
	case <-other.send:
		t.Fatal("non-target client should not receive unicast")
	default:
	}
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	h := NewHub(nil)
	userID := uuid.New()
	slow := &Client{send: make(chan []byte), userID: userID}
	h.clients[slow] = true

	go h.Run()
	defer h.Stop()

	h.SendToUser(userID, []byte("x"))
	// The hub only accepts the next message once the previous one is routed.
	h.SendToUser(uuid.New(), []byte("barrier"))

	_, open := <-slow.send
	assert.False(t, open)
	assert.NotContains(t, h.clients, slow)
}

func TestHub_SendToUserHelper(t *testing.T) {
	h := NewHub(nil)

	done := make(chan UnicastMessage, 1)
	go func() { done <- <-h.unicast }()
	uid := uuid.New()
	h.SendToUser(uid, []byte("y"))
	got := <-done
	require.Equal(t, uid, got.UserID)
	require.Equal(t, "y", string(got.Message))
}

func TestHub_StopUnblocksSenders(t *testing.T) {
	h := NewHub(nil)
	h.Stop()
	h.Stop()

	finished := make(chan struct{})
	go func() {
		h.SendToUser(uuid.New(), []byte("late"))
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("SendToUser blocked after Stop")
	}
}

func TestHub_SeqDropsStaleMessages(t *testing.T) {
	h := NewHub(nil)
	userID := uuid.New()
	c := &Client{send: make(chan []byte, 4), userID: userID}
	h.clients[c] = true

	go h.Run()
	defer h.Stop()

	h.SendToUserSeq(userID, 5, []byte("v5"))
	h.SendToClient(c, 4, []byte("v4"))
	h.SendToUserSeq(userID, 5, []byte("v5 again"))
	h.SendToUser(userID, []byte("unversioned"))
	h.SendToUserSeq(userID, 6, []byte("v6"))
	h.SendToUser(uuid.New(), []byte("barrier"))

	var got []string
	for len(c.send) > 0 {
		got = append(got, string(<-c.send))
	}
	assert.Equal(t, []string{"v5", "unversioned", "v6"}, got)
}

func TestHub_SendToClientTargetsOneConnection(t *testing.T) {
	h := NewHub(nil)
	userID := uuid.New()
	first := &Client{send: make(chan []byte, 1), userID: userID}
	second := &Client{send: make(chan []byte, 1), userID: userID}
	h.clients[first] = true
	h.clients[second] = true

	go h.Run()
	defer h.Stop()

	h.SendToClient(second, 0, []byte("hello"))
	h.SendToUser(uuid.New(), []byte("barrier"))

	assert.Len(t, first.send, 0)
	require.Len(t, second.send, 1)
	assert.Equal(t, "hello", string(<-second.send))
	assert.Equal(t, userID, second.UserID())
}

func TestHub_SendToUnregisteredClientIsIgnored(t *testing.T) {
	h := NewHub(nil)
	gone := &Client{send: make(chan []byte, 1), userID: uuid.New()}

	go h.Run()
	defer h.Stop()

	h.SendToClient(gone, 0, []byte("late"))
	h.SendToUser(uuid.New(), []byte("barrier"))

	assert.Len(t, gone.send, 0)
}
