package loop_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LeadstarlingX/Aim-Trainer/internal/loop"
	"github.com/LeadstarlingX/Aim-Trainer/internal/loop/looptest"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestLoop_After(t *testing.T) {
	s := looptest.New(epoch)
	l := loop.New(s)

	var fired []time.Duration
	l.After(300*time.Millisecond, func() { fired = append(fired, l.Now().Sub(epoch)) })
	l.After(100*time.Millisecond, func() { fired = append(fired, l.Now().Sub(epoch)) })
	stopped := l.After(200*time.Millisecond, func() { fired = append(fired, l.Now().Sub(epoch)) })

	require.True(t, stopped.Stop())
	require.False(t, stopped.Stop())

	s.Advance(time.Second)
	require.Equal(t, []time.Duration{100 * time.Millisecond, 300 * time.Millisecond}, fired)
}

func TestLoop_Every(t *testing.T) {
	s := looptest.New(epoch)
	l := loop.New(s)

	var n int
	var tm loop.Timer
	tm = l.Every(250*time.Millisecond, func() {
		n++
		if n == 3 {
			tm.Stop()
		}
	})

	s.Advance(2 * time.Second)
	require.Equal(t, 3, n)
	require.Zero(t, s.Pending())
}

func TestLoop_DoRecoversPanic(t *testing.T) {
	l := loop.New(loop.RealScheduler())

	require.NotPanics(t, func() {
		l.Do(func() { panic("boom") })
	})

	var ran bool
	l.Do(func() { ran = true })
	require.True(t, ran)
}

func TestLoop_RealSchedulerSerializesCallbacks(t *testing.T) {
	l := loop.New(loop.RealScheduler())

	var (
		wg      sync.WaitGroup
		running int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		l.After(time.Millisecond, func() {
			defer wg.Done()
			running++
			if running > maxSeen {
				maxSeen = running
			}
			time.Sleep(time.Millisecond)
			running--
		})
	}
	wg.Wait()

	require.Equal(t, 1, maxSeen)
}
