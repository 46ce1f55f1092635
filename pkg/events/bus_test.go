package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_EmitInRegistrationOrder(t *testing.T) {
	bus := NewBus()
	var order []int

	bus.On("post:new", func(_ json.RawMessage) { order = append(order, 1) })
	bus.On("post:new", func(_ json.RawMessage) { order = append(order, 2) })
	bus.On("post:new", func(_ json.RawMessage) { order = append(order, 3) })

	bus.Emit("post:new", json.RawMessage(`{}`))

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestBus_EmitPassesPayload(t *testing.T) {
	bus := NewBus()
	var got json.RawMessage
	bus.On("task:assigned", func(data json.RawMessage) { got = data })

	bus.Emit("task:assigned", json.RawMessage(`{"id":"task_1"}`))

	assert.JSONEq(t, `{"id":"task_1"}`, string(got))
}

func TestBus_EmitUnknownEventIsDropped(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() {
		bus.Emit("nobody-listens", json.RawMessage(`{}`))
	})
}

func TestBus_OffRemovesOnlyIdentifiedHandler(t *testing.T) {
	bus := NewBus()
	var calls []string

	subA := bus.On("connected", func(_ json.RawMessage) { calls = append(calls, "a") })
	bus.On("connected", func(_ json.RawMessage) { calls = append(calls, "b") })

	bus.Off(subA)
	bus.Emit("connected", nil)

	assert.Equal(t, []string{"b"}, calls)
	assert.Equal(t, 1, bus.HandlerCount("connected"))
}

func TestBus_OffTwiceIsNoOp(t *testing.T) {
	bus := NewBus()
	sub := bus.On("disconnected", func(_ json.RawMessage) {})

	bus.Off(sub)
	assert.NotPanics(t, func() { bus.Off(sub) })
	assert.Equal(t, 0, bus.HandlerCount("disconnected"))
}

func TestBus_ReentrantOffDuringEmit(t *testing.T) {
	bus := NewBus()
	var sub Subscription
	calls := 0
	sub = bus.On("once", func(_ json.RawMessage) {
		calls++
		bus.Off(sub)
	})

	bus.Emit("once", nil)
	bus.Emit("once", nil)

	assert.Equal(t, 1, calls)
}
