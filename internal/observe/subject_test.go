package observe_test

import (
	"testing"

	"github.com/sproutwatch/sproutwatch/internal/observe"
)

func TestSubjectDeliversInOrder(t *testing.T) {
	s := observe.NewSubject[int]()

	var got []string
	s.Subscribe(func(v int) { got = append(got, "a") })
	s.Subscribe(func(v int) { got = append(got, "b") })

	s.Publish(1)

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("delivery order = %v, want [a b]", got)
	}
}

func TestSubjectUnsubscribe(t *testing.T) {
	s := observe.NewSubject[string]()

	calls := 0
	unsubscribe := s.Subscribe(func(string) { calls++ })
	s.Publish("first")
	unsubscribe()
	unsubscribe()
	s.Publish("second")

	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestSubjectUnsubscribeDuringPublish(t *testing.T) {
	s := observe.NewSubject[int]()

	var unsubscribe func()
	selfCalls, otherCalls := 0, 0
	unsubscribe = s.Subscribe(func(int) {
		selfCalls++
		unsubscribe()
	})
	s.Subscribe(func(int) { otherCalls++ })

	s.Publish(1)
	s.Publish(2)

	if selfCalls != 1 {
		t.Errorf("self-removing handler calls = %d, want 1", selfCalls)
	}
	if otherCalls != 2 {
		t.Errorf("other handler calls = %d, want 2", otherCalls)
	}
}
