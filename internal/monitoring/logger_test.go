package monitoring

import (
	"fmt"
	"log"
	"sync"
	"testing"
)

func TestSetLogger(t *testing.T) {
	defer SetLogger(log.Printf)

	// Test setting a custom logger
	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("queue %s full", "raw-audio")

	if got != "queue raw-audio full" {
		t.Errorf("custom logger got %q", got)
	}

	// Now set to nil and verify it doesn't call our logger
	got = ""
	SetLogger(nil)
	Logf("test")
	if got != "" {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	// Test that we can call it without panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()

	Logf("test message: %s", "value")
}

func TestSetLogger_ConcurrentSwap(t *testing.T) {
	defer SetLogger(log.Printf)
	SetLogger(nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				Logf("tick %d", j)
			}
		}()
	}
	for i := 0; i < 50; i++ {
		SetLogger(func(string, ...interface{}) {})
	}
	wg.Wait()
}
