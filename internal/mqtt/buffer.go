package mqtt

import "log"

// bufferedMsg is a serialized message waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages while the broker is unreachable, oldest first.
//
// A retained message replaces any earlier retained message on the same topic:
// the broker keeps only the last one, so replaying a stale STARTUP ahead of a
// SHUTDOWN would be noise. When full, the oldest message is dropped.
//
// Not safe for concurrent use; RealPublisher holds its mutex around every call.
type outbox struct {
	msgs     []bufferedMsg
	capacity int
	full     bool // logged the current overflow
	dropped  int  // messages lost since the last takeDropped
}

func newOutbox(capacity int) *outbox {
	return &outbox{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (o *outbox) push(msg bufferedMsg) {
	if msg.retained {
		for i, m := range o.msgs {
			if m.retained && m.topic == msg.topic {
				o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
				break
			}
		}
	}
	if len(o.msgs) == o.capacity {
		if !o.full {
			log.Printf("mqtt: offline buffer full (%d messages), dropping oldest", o.capacity)
			o.full = true
		}
		o.dropped++
		o.msgs = append(o.msgs[:0], o.msgs[1:]...)
	}
	o.msgs = append(o.msgs, msg)
}

// pop removes and returns the oldest message.
func (o *outbox) pop() (bufferedMsg, bool) {
	if len(o.msgs) == 0 {
		return bufferedMsg{}, false
	}
	m := o.msgs[0]
	o.msgs = append(o.msgs[:0], o.msgs[1:]...)
	if len(o.msgs) == 0 {
		o.full = false
	}
	return m, true
}

// requeue puts a message that failed to send back at the front. If the
// outbox filled up meanwhile the message is dropped.
func (o *outbox) requeue(m bufferedMsg) {
	if len(o.msgs) == o.capacity {
		o.dropped++
		return
	}
	o.msgs = append(o.msgs, bufferedMsg{})
	copy(o.msgs[1:], o.msgs)
	o.msgs[0] = m
}

// takeDropped returns the drop count and resets it.
func (o *outbox) takeDropped() int {
	n := o.dropped
	o.dropped = 0
	return n
}

func (o *outbox) len() int {
	return len(o.msgs)
}
