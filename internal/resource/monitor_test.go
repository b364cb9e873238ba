package resource

import (
	"testing"
	"time"
)

func TestMonitor_StartStopIsIdempotent(t *testing.T) {
	var m Monitor
	m.Start(10 * time.Millisecond)
	m.Start(10 * time.Millisecond) // no-op: already running
	time.Sleep(25 * time.Millisecond)
	m.Stop()
	m.Stop() // no-op: already stopped
}

func TestMonitor_StopWithoutStartIsSafe(t *testing.T) {
	var m Monitor
	m.Stop()
}
