package browser

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nalgeon/be"
)

const (
	browserLiveTestFlagEnv = "BROWSER_LIVE_TEST"
	browserLiveProfileEnv  = "BROWSER_TEST_PROFILE_DIR"
)

func TestLiveWhatsAppWeb(t *testing.T) {
	if os.Getenv(browserLiveTestFlagEnv) != "1" {
		t.Skipf("set %s=1 to run live WhatsApp Web tests", browserLiveTestFlagEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	web, err := Open(ctx, Options{Headless: true, UserDataDir: os.Getenv(browserLiveProfileEnv)}, nil)
	be.Err(t, err, nil)
	defer web.Close()

	root, err := web.Root(ctx)
	be.Err(t, err, nil)
	be.True(t, root != nil)

	_, err = web.Swipe(ctx)
	be.Err(t, err, nil)
}
