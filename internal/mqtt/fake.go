package mqtt

import (
	"github.com/sweeney/alarm-module/internal/logic"
)

// FakePublisher stands in for the broker in daemon and integration tests.
// It satisfies Publisher, ConnectionStatus and CommandSource.
type FakePublisher struct {
	Events       []logic.Event
	SystemEvents []SystemEvent
	Payloads     [][]byte // formatted state machine events, in order

	// Err fails every publish while set. Failed publishes are not recorded
	// but still count in Attempts.
	Err      error
	Attempts int

	Connected bool
	Closed    bool

	onCommand func(string)
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) Publish(event logic.Event) error {
	f.Attempts++
	if f.Err != nil {
		return f.Err
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.Attempts++
	if f.Err != nil {
		return f.Err
	}
	if _, err := FormatSystemPayload(event); err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

func (f *FakePublisher) SubscribeCommands(handler func(line string)) error {
	f.onCommand = handler
	return nil
}

// Deliver hands line to the subscribed handler as if it arrived on the
// command topic. It reports false with no subscriber.
func (f *FakePublisher) Deliver(line string) bool {
	if f.onCommand == nil {
		return false
	}
	f.onCommand(line)
	return true
}

func (f *FakePublisher) IsConnected() bool { return f.Connected }

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}
