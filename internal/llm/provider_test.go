package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

func collect(events <-chan Event) []Event {
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestStreamEmitsFragmentsThenDone(t *testing.T) {
	events := collect(stream(context.Background(), "test", func(emit func(string) bool) error {
		for _, s := range []string{"Hel", "", "lo"} {
			emit(s)
		}
		return nil
	}))
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %+v", events)
	}
	if events[0].Text != "Hel" || events[1].Text != "lo" {
		t.Fatalf("unexpected fragments %+v", events[:2])
	}
	if events[2].Type != EventDone {
		t.Fatalf("expected terminal done event, got %+v", events[2])
	}
}

func TestStreamWrapsProducerError(t *testing.T) {
	events := collect(stream(context.Background(), "test", func(emit func(string) bool) error {
		emit("partial")
		return errors.New("connection reset")
	}))
	last := events[len(events)-1]
	if last.Type != EventError {
		t.Fatalf("expected terminal error event, got %+v", last)
	}
	if !errors.Is(last.Err, ErrCompletionProvider) {
		t.Fatalf("expected ErrCompletionProvider, got %v", last.Err)
	}
}

func TestStreamStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	events := stream(ctx, "test", func(emit func(string) bool) error {
		close(started)
		for emit("tick") {
		}
		return ctx.Err()
	})
	<-started
	<-events
	cancel()
	for range events {
	}
}

func TestFailedHoldsSingleError(t *testing.T) {
	events := collect(failed("test", errors.New("boom")))
	if len(events) != 1 || events[0].Type != EventError || !errors.Is(events[0].Err, ErrCompletionProvider) {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestConstructorsRequireCredential(t *testing.T) {
	if _, err := NewGeminiClient(context.Background(), ""); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("gemini: expected ErrNoCredential, got %v", err)
	}
	if _, err := NewAnthropic("", "", DefaultParams()); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("anthropic: expected ErrNoCredential, got %v", err)
	}
	if _, err := NewArk(context.Background(), "", "m", "", DefaultParams()); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("ark: expected ErrNoCredential, got %v", err)
	}
}

type fakeChatModel struct {
	chunks []string
	err    error
	seen   []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return nil, errors.New("not used")
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.seen = input
	if f.err != nil {
		return nil, f.err
	}
	msgs := make([]*schema.Message, len(f.chunks))
	for i, c := range f.chunks {
		msgs[i] = schema.AssistantMessage(c, nil)
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func TestEinoStreamsChunks(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"Paris ", "is the capital."}}
	p := NewEino("fake", fake)

	events := collect(p.Stream(context.Background(), []Message{
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: "q2"},
	}))

	var reply strings.Builder
	for _, ev := range events {
		if ev.Type == EventFragment {
			reply.WriteString(ev.Text)
		}
	}
	if reply.String() != "Paris is the capital." {
		t.Fatalf("unexpected reply %q", reply.String())
	}
	if events[len(events)-1].Type != EventDone {
		t.Fatalf("expected done event last")
	}
	if len(fake.seen) != 3 || fake.seen[1].Role != schema.Assistant || fake.seen[2].Content != "q2" {
		t.Fatalf("history not forwarded as expected: %+v", fake.seen)
	}
}

func TestEinoStartFailureIsProviderError(t *testing.T) {
	p := NewEino("fake", &fakeChatModel{err: errors.New("401 unauthorized")})
	events := collect(p.Stream(context.Background(), []Message{{Role: RoleUser, Content: "q"}}))
	if len(events) != 1 || events[0].Type != EventError || !errors.Is(events[0].Err, ErrCompletionProvider) {
		t.Fatalf("unexpected events %+v", events)
	}
}
