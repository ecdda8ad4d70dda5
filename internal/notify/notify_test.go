package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/devdash/internal/alert"
	"codeberg.org/mutker/devdash/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	titles  []string
	haptics []string
	err     error
	block   chan struct{}
}

func (r *recordingSink) Schedule(_ context.Context, title, _ string) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSink) Trigger(_ context.Context, kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.haptics = append(r.haptics, kind)
	return r.err
}

func (r *recordingSink) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...), append([]string(nil), r.haptics...)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, sink, 4, nil)

	d.Dispatch(
		alert.Event{Kind: alert.KindBattery80, Title: "Battery at 80%"},
		alert.Event{Kind: alert.KindStepGoal, Title: "Step goal reached", Haptic: true},
	)
	d.Close()

	titles, haptics := sink.snapshot()
	assert.Equal(t, []string{"Battery at 80%", "Step goal reached"}, titles)
	assert.Equal(t, []string{string(alert.KindStepGoal)}, haptics)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	d := NewDispatcher(sink, nil, 1, logger.Nop())

	start := time.Now()
	for i := 0; i < 10; i++ {
		d.Dispatch(alert.Event{Kind: alert.KindBatteryFull, Title: fmt.Sprint(i)})
	}
	assert.Less(t, time.Since(start), time.Second, "dispatch must not block")

	close(sink.block)
	d.Close()

	titles, _ := sink.snapshot()
	assert.GreaterOrEqual(t, len(titles), 1)
	assert.LessOrEqual(t, len(titles), 2)
}

func TestDispatcherAbsorbsSinkErrors(t *testing.T) {
	sink := &recordingSink{err: fmt.Errorf("denied")}
	d := NewDispatcher(sink, sink, 2, nil)

	d.Dispatch(alert.Event{Kind: alert.KindStepGoal, Title: "x", Haptic: true})
	d.Close()

	titles, haptics := sink.snapshot()
	assert.Len(t, titles, 1)
	assert.Len(t, haptics, 1)
}

func TestDispatchAfterClose(t *testing.T) {
	d := NewDispatcher(&recordingSink{}, nil, 1, nil)
	d.Close()
	d.Close()

	d.Dispatch(alert.Event{Kind: alert.KindBattery80})
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &recordingSink{}
	bad := &recordingSink{err: fmt.Errorf("no daemon")}

	err := Multi{ok, bad}.Schedule(context.Background(), "t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no daemon")

	titles, _ := ok.snapshot()
	assert.Equal(t, []string{"t"}, titles)

	require.NoError(t, MultiHaptic{ok}.Trigger(context.Background(), "step_goal"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
