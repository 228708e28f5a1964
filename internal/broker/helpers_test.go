package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"submux/internal/pubsub"
)

type received struct {
	channel string
	payload string
}

// recordingHandler 把会话回调转成 channel，便于断言
type recordingHandler struct {
	subscribed chan string
	messages   chan received
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		subscribed: make(chan string, 64),
		messages:   make(chan received, 64),
	}
}

func (h *recordingHandler) OnMessage(channel string, payload []byte) {
	h.messages <- received{channel: channel, payload: string(payload)}
}

func (h *recordingHandler) OnSubscribe(channel string, _ int) {
	h.subscribed <- channel
}

func (h *recordingHandler) expectSubscribed(t *testing.T, channels ...string) {
	t.Helper()
	want := make(map[string]bool, len(channels))
	for _, ch := range channels {
		want[ch] = true
	}
	deadline := time.After(2 * time.Second)
	for len(want) > 0 {
		select {
		case ch := <-h.subscribed:
			delete(want, ch)
		case <-deadline:
			t.Fatalf("timeout waiting for subscribe acks, missing %v", want)
		}
	}
}

func (h *recordingHandler) expectMessage(t *testing.T) received {
	t.Helper()
	select {
	case msg := <-h.messages:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
	return received{}
}

func (h *recordingHandler) expectNoMessage(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case msg := <-h.messages:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(wait):
	}
}

// runSession 在后台运行会话，返回结束结果
func runSession(ctx context.Context, s pubsub.Session, channels []string, h pubsub.SessionHandler) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(ctx, channels, h)
	}()
	return errCh
}

func waitRunResult(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(3 * time.Second):
		require.FailNow(t, "session Run did not return")
	}
	return nil
}
