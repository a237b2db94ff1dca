package relay

import (
	"fmt"
	"os/exec"
	"runtime"
)

// DefaultOpenURL opens url in the user's default browser.
//
// This is the production value for Relay's openURL dependency — the
// extension's stand-in for the editor host's "open external URL" capability.
// Tests inject a function that just records the URL instead.
func DefaultOpenURL(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("relay: opening browser: %w", err)
	}
	// Release the child; we don't care when the browser exits.
	go cmd.Wait()
	return nil
}
