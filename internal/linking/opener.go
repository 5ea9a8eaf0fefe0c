package linking

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// Popup window geometry used by the web UI.
const (
	PopupWidth  = 600
	PopupHeight = 800
)

// Opener shows the authorization URL to the user in a separate surface.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, url string) error

func (f OpenerFunc) Open(ctx context.Context, url string) error { return f(ctx, url) }

// BrowserDelegated is used when the user's browser opens the popup itself.
// The page reports a blocked popup by cancelling the attempt.
var BrowserDelegated Opener = OpenerFunc(func(context.Context, string) error { return nil })

// SystemBrowser opens url in the default browser of the host.
type SystemBrowser struct {
	// Command overrides the platform default, mainly for tests.
	Command []string
}

func (b SystemBrowser) Open(ctx context.Context, url string) error {
	args := b.Command
	if len(args) == 0 {
		switch runtime.GOOS {
		case "darwin":
			args = []string{"open"}
		case "windows":
			args = []string{"rundll32", "url.dll,FileProtocolHandler"}
		default:
			args = []string{"xdg-open"}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := exec.Command(args[0], append(args[1:], url)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	go cmd.Wait()
	return nil
}
