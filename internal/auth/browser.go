package auth

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
)

// browserNames are looked up in PATH when no known install location matches.
var browserNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"msedge",
	"brave-browser",
	"brave",
}

// FindBrowser returns the Chromium-based browser to drive for interactive
// login. An explicit path wins, then CHROME_PATH, then the usual install
// locations for the OS, then PATH. It returns "" when nothing is found, in
// which case chromedp falls back to its own lookup.
func FindBrowser(explicit string) string {
	for _, path := range []string{explicit, os.Getenv("CHROME_PATH")} {
		if path == "" {
			continue
		}
		if isExecutable(path) {
			return path
		}
		log.Warn().Str("path", path).Msg("Browser path is not executable, searching")
	}

	for _, path := range browserCandidates(runtime.GOOS, os.Getenv) {
		if isExecutable(path) {
			log.Debug().Str("path", path).Msg("Browser found")
			return path
		}
	}

	for _, name := range browserNames {
		if path, err := exec.LookPath(name); err == nil {
			log.Debug().Str("path", path).Msg("Browser found in PATH")
			return path
		}
	}

	log.Warn().Str("os", runtime.GOOS).Msg("No browser found, using chromedp default")
	return ""
}

func browserCandidates(goos string, getenv func(string) string) []string {
	var candidates []string
	home := getenv("HOME")

	switch goos {
	case "darwin":
		for _, app := range []string{
			"Google Chrome.app/Contents/MacOS/Google Chrome",
			"Chromium.app/Contents/MacOS/Chromium",
			"Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
			"Brave Browser.app/Contents/MacOS/Brave Browser",
		} {
			candidates = append(candidates, filepath.Join("/Applications", app))
			if home != "" {
				candidates = append(candidates, filepath.Join(home, "Applications", app))
			}
		}

	case "windows":
		for _, base := range []string{getenv("ProgramFiles"), getenv("ProgramFiles(x86)"), getenv("LocalAppData")} {
			if base == "" {
				continue
			}
			candidates = append(candidates,
				filepath.Join(base, "Google", "Chrome", "Application", "chrome.exe"),
				filepath.Join(base, "Chromium", "Application", "chrome.exe"),
				filepath.Join(base, "Microsoft", "Edge", "Application", "msedge.exe"),
				filepath.Join(base, "BraveSoftware", "Brave-Browser", "Application", "brave.exe"),
			)
		}

	default:
		candidates = []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
			"/usr/bin/microsoft-edge",
			"/usr/bin/brave-browser",
		}
		if home != "" {
			candidates = append(candidates,
				filepath.Join(home, ".local/share/flatpak/exports/bin/com.google.Chrome"),
				filepath.Join(home, ".local/share/flatpak/exports/bin/org.chromium.Chromium"),
			)
		}
	}
	return candidates
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0o111 != 0
}
