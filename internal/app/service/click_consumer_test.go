package service

import (
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/snapurl/snapurl/internal/app/model"
	infraPrometheus "github.com/snapurl/snapurl/internal/infra/prometheus"
)

type stubFetcher struct {
	fetchFn func(call int) ([]*nats.Msg, error)
	calls   atomic.Int64
}

func (s *stubFetcher) Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error) {
	call := int(s.calls.Add(1))
	return s.fetchFn(call)
}

func TestClickConsumer_CountsEvents(t *testing.T) {
	data, err := json.Marshal(model.ClickEvent{
		ID:       "e1",
		LinkCode: "mylink1",
		Location: "Localhost",
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	fetcher := &stubFetcher{
		fetchFn: func(call int) ([]*nats.Msg, error) {
			if call == 1 {
				return []*nats.Msg{{Data: data}}, nil
			}
			// Block like a real pull fetch waiting out MaxWait.
			time.Sleep(5 * time.Millisecond)
			return nil, nats.ErrTimeout
		},
	}

	before := testutil.ToFloat64(infraPrometheus.ClickEventsConsumed)

	consumer := NewClickConsumer(nil, nil)
	go consumer.consume(fetcher)

	deadline := time.After(time.Second)
	for testutil.ToFloat64(infraPrometheus.ClickEventsConsumed) < before+1 {
		select {
		case <-deadline:
			t.Fatal("consumer never counted the event")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestClickConsumer_BacksOffOnFetchError(t *testing.T) {
	fetcher := &stubFetcher{
		fetchFn: func(call int) ([]*nats.Msg, error) {
			return nil, errors.New("connection closed")
		},
	}

	consumer := NewClickConsumer(nil, nil)
	consumer.fetchBackoff = 50 * time.Millisecond
	go consumer.consume(fetcher)

	time.Sleep(120 * time.Millisecond)
	if calls := fetcher.calls.Load(); calls > 4 {
		t.Fatalf("expected backoff between failed fetches, got %d calls", calls)
	}
}
