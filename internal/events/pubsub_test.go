package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

const testProductID = "product-1"

func newQuietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

func TestPubSub(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"NewPubSub", testNewPubSub},
		{"Publish", testPublish},
		{"MultipleSubscribers", testMultipleSubscribers},
		{"HandlerError", testHandlerError},
		{"Clear", testClear},
		{"NilHandler", testNilHandler},
		{"EmptyType", testEmptyType},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testNewPubSub(t *testing.T) {
	pubsub := NewPubSub(newQuietLogger())
	if pubsub.HandlerCount(EventSaleRecorded) != 0 {
		t.Errorf("Expected 0 handlers, got %d", pubsub.HandlerCount(EventSaleRecorded))
	}

	if NewPubSub(nil) == nil {
		t.Fatal("NewPubSub(nil) returned nil")
	}
}

func testPublish(t *testing.T) {
	pubsub := NewPubSub(newQuietLogger())

	received := make(chan Event, 1)
	pubsub.Subscribe(EventSaleRecorded, func(ctx context.Context, event Event) error {
		received <- event
		return nil
	})

	pubsub.Publish(context.Background(), NewEvent(EventSaleRecorded, testProductID, map[string]any{"quantity": 3.0}))

	select {
	case event := <-received:
		if event.ProductID != testProductID {
			t.Errorf("Expected product %s, got %s", testProductID, event.ProductID)
		}
		if event.Data["quantity"] != 3.0 {
			t.Errorf("Expected quantity 3, got %v", event.Data["quantity"])
		}
		if event.Timestamp == 0 {
			t.Error("Expected timestamp to be set")
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
}

func testMultipleSubscribers(t *testing.T) {
	pubsub := NewPubSub(newQuietLogger())

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		pubsub.Subscribe(EventStockLow, func(ctx context.Context, event Event) error {
			wg.Done()
			return nil
		})
	}
	if pubsub.HandlerCount(EventStockLow) != 3 {
		t.Errorf("Expected 3 handlers, got %d", pubsub.HandlerCount(EventStockLow))
	}

	pubsub.Publish(context.Background(), NewEvent(EventStockLow, testProductID, nil))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all handlers were called")
	}
}

func testHandlerError(t *testing.T) {
	pubsub := NewPubSub(newQuietLogger())

	called := make(chan struct{})
	pubsub.Subscribe(EventForecastGenerated, func(ctx context.Context, event Event) error {
		defer close(called)
		return errors.New("boom")
	})

	pubsub.Publish(context.Background(), NewEvent(EventForecastGenerated, testProductID, nil))

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
}

func testClear(t *testing.T) {
	pubsub := NewPubSub(newQuietLogger())
	noop := func(ctx context.Context, event Event) error { return nil }

	pubsub.Subscribe(EventSaleRecorded, noop)
	pubsub.Subscribe(EventStockLow, noop)

	pubsub.Clear(EventSaleRecorded)
	if pubsub.HandlerCount(EventSaleRecorded) != 0 {
		t.Error("Expected sale handlers to be cleared")
	}
	if pubsub.HandlerCount(EventStockLow) != 1 {
		t.Error("Expected stock handlers to remain")
	}

	pubsub.Clear("")
	if pubsub.HandlerCount(EventStockLow) != 0 {
		t.Error("Expected all handlers to be cleared")
	}
}

func testNilHandler(t *testing.T) {
	pubsub := NewPubSub(newQuietLogger())
	pubsub.Subscribe(EventSaleRecorded, nil)

	if pubsub.HandlerCount(EventSaleRecorded) != 0 {
		t.Errorf("Expected nil handler to be ignored, got %d", pubsub.HandlerCount(EventSaleRecorded))
	}
}

func testEmptyType(t *testing.T) {
	pubsub := NewPubSub(newQuietLogger())

	called := false
	pubsub.Subscribe("", func(ctx context.Context, event Event) error {
		called = true
		return nil
	})
	pubsub.Publish(context.Background(), Event{})

	time.Sleep(10 * time.Millisecond)
	if called {
		t.Error("Expected event with empty type to be dropped")
	}
}
