// Package browser opens the IDE in a chromeless app-mode window when a
// Chromium-family browser is installed, falling back to the platform's
// default opener.
package browser

import (
	"log/slog"
	"os/exec"
	"runtime"

	"github.com/vibefoundry/vibefoundry-sandbox/internal/utils"
)

// candidate browsers per OS, preferred first. PATH names are tried after the
// well-known install locations.
func chromiumCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
			"chrome", "msedge",
		}
	default:
		return []string{
			"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "microsoft-edge",
		}
	}
}

// OpenAppMode opens url in a dedicated app window if possible; otherwise in
// the default browser. Returns whether app-mode was used. Never blocks and
// never fails the caller: a desktop without a browser just logs.
func OpenAppMode(url string, log *slog.Logger) bool {
	log = log.With("component", "browser")

	for _, candidate := range chromiumCandidates() {
		path := candidate
		if !utils.FileExists(path) {
			resolved, err := exec.LookPath(candidate)
			if err != nil {
				continue
			}
			path = resolved
		}

		cmd := exec.Command(path, "--app="+url)
		if err := cmd.Start(); err != nil {
			log.Debug("browser launch failed", "browser", path, "error", err)
			continue
		}
		go cmd.Wait()
		log.Info("opened app window", "browser", path, "url", url)
		return true
	}

	if err := openDefault(url); err != nil {
		log.Warn("could not open a browser", "url", url, "error", err)
	} else {
		log.Info("opened default browser", "url", url)
	}
	return false
}

func openDefault(url string) error {
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
		return err
	}
	go cmd.Wait()
	return nil
}
