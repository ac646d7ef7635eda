package progress

import (
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	p := New("accept", 100, nil)
	if p.Op != "accept" {
		t.Errorf("expected Op 'accept', got %s", p.Op)
	}
	if p.Total != 100 {
		t.Errorf("expected Total 100, got %d", p.Total)
	}
	if p.cb == nil {
		t.Error("expected callback to be set to Noop, got nil")
	}
}

func TestIncrement(t *testing.T) {
	var mu sync.Mutex
	var calls []struct {
		op      string
		current int
		total   int
		message string
	}
	cb := func(op string, current, total int, message string) {
		mu.Lock()
		calls = append(calls, struct {
			op      string
			current int
			total   int
			message string
		}{op, current, total, message})
		mu.Unlock()
	}
	p := New("reject", 10, cb)

	p.Increment("main.go")
	p.Increment("util.go")
	p.Increment("cmd.go")

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(calls))
	}
	if calls[0].current != 1 || calls[1].current != 2 || calls[2].current != 3 {
		t.Errorf("unexpected current values: %v", calls)
	}
	if calls[0].message != "main.go" {
		t.Errorf("expected message 'main.go', got %s", calls[0].message)
	}
}

func TestSet(t *testing.T) {
	var lastCurrent int
	var lastMessage string
	cb := func(op string, current, total int, message string) {
		lastCurrent = current
		lastMessage = message
	}
	p := New("prune", 100, cb)

	p.Set(50, "halfway")

	if lastCurrent != 50 {
		t.Errorf("expected current 50, got %d", lastCurrent)
	}
	if lastMessage != "halfway" {
		t.Errorf("expected message 'halfway', got %s", lastMessage)
	}
}

func TestDone(t *testing.T) {
	var lastCurrent, lastTotal int
	cb := func(op string, current, total int, message string) {
		lastCurrent = current
		lastTotal = total
	}
	p := New("restore", 7, cb)

	p.Done("finished")

	if lastCurrent != 7 || lastTotal != 7 {
		t.Errorf("expected current=total=7, got %d/%d", lastCurrent, lastTotal)
	}
	if p.Current() != 7 {
		t.Errorf("expected Current() 7, got %d", p.Current())
	}
}
