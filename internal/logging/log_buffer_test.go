package logging

import (
	"sync"
	"testing"
)

func TestBufferOverwritesOldest(t *testing.T) {
	buffer := NewBuffer(2)
	buffer.Add(Entry{Message: "first"})
	buffer.Add(Entry{Message: "second"})
	buffer.Add(Entry{Message: "third"})

	entries := buffer.List()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "second" || entries[1].Message != "third" {
		t.Fatalf("unexpected entries %v", entries)
	}
}

func TestBufferConcurrentAdds(t *testing.T) {
	buffer := NewBuffer(50)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				buffer.Add(Entry{Message: "entry"})
			}
		}()
	}
	wg.Wait()

	if got := len(buffer.List()); got != 50 {
		t.Fatalf("expected 50 entries, got %d", got)
	}
}
