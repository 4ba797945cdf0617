package websocket

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// A member whose buffer is full gets dropped by whichever broadcaster sees
// it first; broadcasters racing the drop must not touch the channel the
// drop just closed.
func TestBroadcastSurvivesConcurrentSlowConsumerDrop(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	frame := map[string]string{"type": "order_status"}

	for i := 0; i < 200; i++ {
		c := &Client{ID: fmt.Sprintf("conn-%d", i), Send: make(chan []byte, 1)}
		hub.Register(c)
		hub.Join(c, "order:o1")
		c.Send <- []byte("backlog") // full buffer forces every broadcast onto the drop path

		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				hub.BroadcastToRoom("order:o1", frame)
			}()
		}
		wg.Wait()

		assert.Equal(t, 0, hub.RoomSize("order:o1"))
	}
}

func TestSendToConnSkipsUnregisteredConnection(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	c := &Client{ID: "conn-1", Send: make(chan []byte, 1)}
	hub.Register(c)
	hub.Unregister(c)

	// The channel is closed; sending to it would panic.
	hub.SendToConn(c, []byte(`{"type":"order_status"}`))
}

func TestSendToConnDropsFullConnection(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	c := &Client{ID: "conn-1", Send: make(chan []byte, 1)}
	hub.Register(c)
	hub.Join(c, "crew:c1")
	c.Send <- []byte("backlog")

	hub.SendToConn(c, []byte(`{"type":"order_status"}`))

	assert.Equal(t, 0, hub.RoomSize("crew:c1"))
	hub.SendToConn(c, []byte(`{"type":"order_status"}`)) // now unregistered: no-op
}

func TestConcurrentDisconnectAndDirectSend(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())

	for i := 0; i < 200; i++ {
		c := &Client{ID: fmt.Sprintf("conn-%d", i), Send: make(chan []byte, 1)}
		hub.Register(c)
		c.Send <- []byte("backlog")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			hub.SendToConn(c, []byte(`{"type":"error"}`))
		}()
		wg.Wait()
	}
}
