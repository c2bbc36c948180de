package i3block

import (
	"errors"
	"syscall"
	"testing"
)

func TestParseFirstPID(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1234\n", 1234, false},
		{"1234\n5678\n", 1234, false},
		{"", -1, true},
		{"abc", -1, true},
	}
	for _, tt := range tests {
		got, err := parseFirstPID(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("parseFirstPID(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestRefreshRetriesAfterRestart(t *testing.T) {
	c := NewController(5)
	if c.signal != syscall.Signal(39) {
		t.Fatalf("signal = %d, want 39", c.signal)
	}

	alive := 200
	c.find = func() (int, error) { return alive, nil }
	var sent []int
	c.kill = func(pid int, sig syscall.Signal) error {
		sent = append(sent, pid)
		if pid != alive {
			return errors.New("no such process")
		}
		return nil
	}

	c.setPID(100)
	if err := c.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(sent) != 2 || sent[0] != 100 || sent[1] != 200 || c.GetPID() != 200 {
		t.Errorf("unexpected signals %v, pid %d", sent, c.GetPID())
	}
}

func TestRefreshWithoutI3blocks(t *testing.T) {
	c := NewController(1)
	c.find = func() (int, error) { return -1, errors.New("i3blocks process not found") }
	c.kill = func(int, syscall.Signal) error { t.Fatal("should not signal"); return nil }

	if err := c.Refresh(); err == nil {
		t.Error("expected error")
	}
	if c.GetPID() != -1 {
		t.Errorf("GetPID() = %d", c.GetPID())
	}
}

func TestStartStop(t *testing.T) {
	c := NewController(1)
	c.find = func() (int, error) { return 42, nil }

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(); err == nil {
		t.Error("second Start should fail")
	}
	if c.GetPID() != 42 {
		t.Errorf("GetPID() = %d", c.GetPID())
	}
	c.Stop()
	c.Stop()
}
