package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nats-io/nats.go"
)

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = &NoopPublisher{}
	if err := pub.Publish(context.Background(), FilterUpdated{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestSubject(t *testing.T) {
	for _, tc := range []struct {
		ev   Event
		want string
	}{
		{FilterUpdated{Filter: "Work"}, "dynfilter.filter.updated.Work"},
		{FilterReset{Filter: "Work"}, "dynfilter.filter.reset.Work"},
		{FilterUpdated{Filter: "my.filter"}, "dynfilter.filter.updated.my%2Efilter"},
		{FilterUpdated{Filter: "a b*>"}, "dynfilter.filter.updated.a%20b%2A%3E"},
		{FilterReset{}, "dynfilter.filter.reset._"},
	} {
		if got := Subject(tc.ev); got != tc.want {
			t.Errorf("Subject(%#v) = %q, want %q", tc.ev, got, tc.want)
		}
	}
	if got := FilterTopic("Work"); got != "dynfilter.filter.*.Work" {
		t.Errorf("FilterTopic = %q", got)
	}
}

func TestMessage_Filter(t *testing.T) {
	for subject, want := range map[string]string{
		"dynfilter.filter.updated.Work":        "Work",
		"dynfilter.filter.reset.my%2Efilter":   "my.filter",
		"dynfilter.filter.updated.a%20b%2A%3E": "a b*>",
		"dynfilter.filter.reset._":             "",
		"dynfilter.filter.reset":               "",
	} {
		if got := (Message{Subject: subject}).Filter(); got != want {
			t.Errorf("Filter(%q) = %q, want %q", subject, got, want)
		}
	}
}

func TestMessage_Decode(t *testing.T) {
	for _, want := range []Event{
		FilterUpdated{Filter: "Work", Session: "fs-1", Values: map[string]any{"status": "open"}},
		FilterReset{Filter: "Work", Session: "fs-1", Values: map[string]any{"status": "open"}},
	} {
		data, err := json.Marshal(want)
		if err != nil {
			t.Fatal(err)
		}
		got, err := Message{Subject: Subject(want), Data: data}.Decode()
		if err != nil {
			t.Fatalf("Decode(%s): %v", want.Topic(), err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Decode(%s) mismatch (-want +got):\n%s", want.Topic(), diff)
		}
	}

	if _, err := (Message{Subject: "dynfilter.other", Data: []byte("{}")}).Decode(); err == nil {
		t.Error("expected error for unknown subject")
	}
	if _, err := (Message{Subject: TopicFilterReset + ".Work", Data: []byte("{")}).Decode(); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestMessage_Kind(t *testing.T) {
	if got := (Message{Subject: TopicFilterReset + ".Work"}).Kind(); got != "reset" {
		t.Errorf("Kind = %q, want reset", got)
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicFilterUpdated+".Work", ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := FilterUpdated{Filter: "Work", Session: "fs-1", Values: map[string]any{"priority": 2}}
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got FilterUpdated
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Filter != "Work" || got.Session != "fs-1" || got.Values["priority"] != float64(2) {
			t.Errorf("got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := pub.Publish(context.Background(), FilterReset{}); err == nil {
		t.Error("expected error publishing after close")
	}
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, FilterReset{Filter: "Work"}); err != context.Canceled {
		t.Errorf("Publish = %v, want context.Canceled", err)
	}
}
