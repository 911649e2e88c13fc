package platform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

type fakeIDGen struct{ n int }

func (f *fakeIDGen) NewID() string {
	f.n++
	return time.Unix(int64(f.n), 0).String()
}

func TestSetClockOverridesNow(t *testing.T) {
	defer SetClock(SystemClock{})
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	SetClock(fakeClock{t: fixed})

	require.True(t, Now().Equal(fixed))
}

func TestSetIDGenOverridesNewID(t *testing.T) {
	defer SetIDGen(UUIDGen{})
	gen := &fakeIDGen{}
	SetIDGen(gen)

	first := NewID()
	second := NewID()
	require.NotEqual(t, first, second)
}

func TestDefaultIDGenProducesUUIDs(t *testing.T) {
	id := UUIDGen{}.NewID()
	require.Len(t, id, 36)
}
