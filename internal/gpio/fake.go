package gpio

import (
	"fmt"
	"sync"
)

// FakeLines is an in-memory Lines for tests. Changing an input's level with
// SetLevel fires its edge handler synchronously.
type FakeLines struct {
	mu     sync.Mutex
	pins   map[int]*fakePin
	closed bool

	// LevelError, if set, is returned by Level.
	LevelError error
}

type fakePin struct {
	high   bool
	output bool
	kept   bool
	pull   Pull
	onEdge EdgeHandler
	writes []bool
}

// NewFakeLines creates an empty FakeLines.
func NewFakeLines() *FakeLines {
	return &FakeLines{pins: make(map[int]*fakePin)}
}

// Preset sets the level an input will read once requested. It does not fire edges.
func (f *FakeLines) Preset(pin int, high bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pin(pin).high = high
}

func (f *FakeLines) pin(n int) *fakePin {
	p, ok := f.pins[n]
	if !ok {
		p = &fakePin{}
		f.pins[n] = p
	}
	return p
}

// Input implements Lines. Unconfigured pins follow their pull.
func (f *FakeLines) Input(pin int, pull Pull, onEdge EdgeHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, existed := f.pins[pin]
	if !existed {
		p = f.pin(pin)
		p.high = pull == PullUp
	}
	p.output = false
	p.pull = pull
	p.onEdge = onEdge
	return nil
}

// Output implements Lines.
func (f *FakeLines) Output(pin int, high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pin(pin)
	p.output = true
	p.high = high
	p.writes = append(p.writes, high)
	return nil
}

// Level implements Lines.
func (f *FakeLines) Level(pin int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LevelError != nil {
		return false, f.LevelError
	}
	p, ok := f.pins[pin]
	if !ok {
		return false, fmt.Errorf("pin %d not requested", pin)
	}
	return p.high, nil
}

// Set implements Lines.
func (f *FakeLines) Set(pin int, high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[pin]
	if !ok || !p.output {
		return fmt.Errorf("pin %d is not an output", pin)
	}
	p.high = high
	p.writes = append(p.writes, high)
	return nil
}

// Toggle implements Lines.
func (f *FakeLines) Toggle(pin int) error {
	f.mu.Lock()
	p, ok := f.pins[pin]
	if !ok || !p.output {
		f.mu.Unlock()
		return fmt.Errorf("pin %d is not an output", pin)
	}
	p.high = !p.high
	p.writes = append(p.writes, p.high)
	f.mu.Unlock()
	return nil
}

// Keep implements Lines.
func (f *FakeLines) Keep(pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[pin]
	if !ok || !p.output {
		return fmt.Errorf("pin %d is not an output", pin)
	}
	p.kept = true
	return nil
}

// Close implements Lines. Like the real driver, outputs that were not kept
// become pulled-down inputs and read low.
func (f *FakeLines) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pins {
		if p.output && !p.kept {
			p.output = false
			p.pull = PullDown
			p.high = false
		}
	}
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeLines) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// SetLevel drives an input from outside. The edge handler fires only when the
// level actually changes.
func (f *FakeLines) SetLevel(pin int, high bool) {
	f.mu.Lock()
	p := f.pin(pin)
	changed := p.high != high
	p.high = high
	h := p.onEdge
	f.mu.Unlock()

	if changed && h != nil {
		h(pin)
	}
}

// Edge fires the edge handler without changing the level, like contact bounce.
func (f *FakeLines) Edge(pin int) {
	f.mu.Lock()
	h := f.pin(pin).onEdge
	f.mu.Unlock()
	if h != nil {
		h(pin)
	}
}

// High returns the current level of pin, false if never touched.
func (f *FakeLines) High(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pins[pin]; ok {
		return p.high
	}
	return false
}

// IsOutput reports whether pin was requested as an output.
func (f *FakeLines) IsOutput(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[pin]
	return ok && p.output
}

// PullOf returns the bias pin was requested with.
func (f *FakeLines) PullOf(pin int) Pull {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pins[pin]; ok {
		return p.pull
	}
	return PullNone
}

// Writes returns every level driven onto an output, in order.
func (f *FakeLines) Writes(pin int) []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[pin]
	if !ok {
		return nil
	}
	out := make([]bool, len(p.writes))
	copy(out, p.writes)
	return out
}
