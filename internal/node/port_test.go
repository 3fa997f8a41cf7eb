package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/pkg/exception"
)

func TestPortInputOutput(t *testing.T) {
	p := NewPort()

	value := 42
	SetInput(p, 0, &value)

	got, err := Input[int](p, 0)
	require.NoError(t, err)
	assert.Same(t, &value, got)

	value = 7
	assert.Equal(t, 7, *got)
}

func TestPortUnconnectedSlot(t *testing.T) {
	p := NewPort()

	_, err := Input[int](p, 3)
	assert.ErrorIs(t, err, exception.ErrSlotNotConnected)

	_, err = Output[int](p, 0)
	assert.ErrorIs(t, err, exception.ErrSlotNotConnected)
}

func TestPortTypeMismatch(t *testing.T) {
	p := NewPort()

	value := "not an int"
	SetInput(p, 0, &value)

	_, err := Input[int](p, 0)
	assert.ErrorIs(t, err, exception.ErrSlotTypeMismatch)
}

type stubNode struct {
	id   string
	port *Port
}

func (n *stubNode) ID() string                      { return n.id }
func (n *stubNode) Port() *Port                     { return n.port }
func (n *stubNode) Execute(_ context.Context) error { return nil }

func TestConnect(t *testing.T) {
	origin := &stubNode{id: "origin", port: NewPort()}
	target := &stubNode{id: "target", port: NewPort()}

	shared := 3.14
	SetOutput(origin.port, 0, &shared)

	require.NoError(t, Connect[float64](origin, 0, target, 1))

	got, err := Input[float64](target.port, 1)
	require.NoError(t, err)
	assert.Same(t, &shared, got)
}

func TestConnectTypeMismatch(t *testing.T) {
	origin := &stubNode{id: "origin", port: NewPort()}
	target := &stubNode{id: "target", port: NewPort()}

	shared := 3.14
	SetOutput(origin.port, 0, &shared)

	err := Connect[int](origin, 0, target, 0)
	assert.ErrorIs(t, err, exception.ErrSlotTypeMismatch)
}

func TestBarrierReleasesAllParties(t *testing.T) {
	b, err := NewBarrier(3)
	require.NoError(t, err)

	done := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			done <- b.Arrive(t.Context())
		}()
	}

	for i := 0; i < 3; i++ {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("barrier never released")
		}
	}
}

func TestBarrierBlocksUntilLastParty(t *testing.T) {
	b, err := NewBarrier(2)
	require.NoError(t, err)

	released := make(chan struct{})
	go func() {
		_ = b.Arrive(t.Context())
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("released with one party missing")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, b.Arrive(t.Context()))

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("barrier never released")
	}
}

func TestBarrierContextCancel(t *testing.T) {
	b, err := NewBarrier(2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	assert.ErrorIs(t, b.Arrive(ctx), context.Canceled)
}

func TestBarrierInvalidParties(t *testing.T) {
	_, err := NewBarrier(0)
	assert.Error(t, err)
}
