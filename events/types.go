package events

import (
	"time"
)

// EventType is an enum-like string type for agent boundary events
type EventType string

const (
	EventConnectivityOnline  EventType = "ConnectivityOnline"
	EventConnectivityOffline EventType = "ConnectivityOffline"
	EventSyncCompleted       EventType = "SyncCompleted"
)

// AgentEvent represents any boundary event delivered to the running agent
type AgentEvent interface {
	Type() EventType
	Timestamp() time.Time
}

// ConnectivityChanged is published when the device transitions between
// offline and online, by whichever layer observed the edge first.
type ConnectivityChanged struct {
	online    bool
	source    string
	timestamp time.Time
}

func NewConnectivityChanged(online bool, source string) *ConnectivityChanged {
	return &ConnectivityChanged{
		online:    online,
		source:    source,
		timestamp: time.Now(),
	}
}

func (e *ConnectivityChanged) Type() EventType {
	if e.online {
		return EventConnectivityOnline
	}
	return EventConnectivityOffline
}

func (e *ConnectivityChanged) Timestamp() time.Time {
	return e.timestamp
}

// Online reports the new connectivity state.
func (e *ConnectivityChanged) Online() bool {
	return e.online
}

// Source names the layer that observed the transition (probe, assetcache).
func (e *ConnectivityChanged) Source() string {
	return e.source
}

// SyncCompleted is published after a sync attempt confirmed at least one
// transaction, so local observers can refresh their view of the queue.
type SyncCompleted struct {
	confirmed int
	timestamp time.Time
}

func NewSyncCompleted(confirmed int) *SyncCompleted {
	return &SyncCompleted{
		confirmed: confirmed,
		timestamp: time.Now(),
	}
}

func (e *SyncCompleted) Type() EventType {
	return EventSyncCompleted
}

func (e *SyncCompleted) Timestamp() time.Time {
	return e.timestamp
}

func (e *SyncCompleted) Confirmed() int {
	return e.confirmed
}
