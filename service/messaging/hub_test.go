package messaging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/overseer/service/messaging"
)

func TestHub(t *testing.T) {
	hub := messaging.NewHub[string]()
	first, cancelFirst := hub.Subscribe(2)
	second, cancelSecond := hub.Subscribe(1)
	assert.Equal(t, 2, hub.Subscribers())

	hub.Publish("a")
	hub.Publish("b")
	assert.Equal(t, "a", <-first)
	assert.Equal(t, "b", <-first)
	assert.Equal(t, "a", <-second)
	assert.Equal(t, uint64(1), hub.Dropped())

	cancelFirst()
	cancelFirst()
	_, open := <-first
	assert.False(t, open)
	assert.Equal(t, 1, hub.Subscribers())

	hub.Close()
	_, open = <-second
	assert.False(t, open)
	cancelSecond()

	late, _ := hub.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
}
