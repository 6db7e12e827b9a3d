package messages

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nalgeon/be"
)

const messagesLiveTestFlagEnv = "MESSAGES_LIVE_TEST"

func TestLiveMessagesSurface(t *testing.T) {
	if os.Getenv(messagesLiveTestFlagEnv) != "1" {
		t.Skipf("set %s=1 to run live Messages integration tests", messagesLiveTestFlagEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := Open(ctx, Options{PageSize: 20}, nil)
	be.Err(t, err, nil)
	defer s.Close()

	msgs, err := s.ListMessages(ctx, 0, 20)
	be.Err(t, err, nil)
	be.True(t, len(msgs) > 0)

	_, err = s.Swipe(ctx)
	be.Err(t, err, nil)
}
