package chromebrowser

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ResolveChromePath returns the Chrome executable to launch, checking in
// order: explicitPath, the CHROME_PATH environment variable, then the
// platform's usual install locations (Chromium before Chrome). It returns ""
// when nothing is found.
func ResolveChromePath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	if envPath := os.Getenv("CHROME_PATH"); envPath != "" {
		return envPath
	}
	for _, c := range candidates(runtime.GOOS, os.Getenv) {
		if path := resolveExecutable(c); path != "" {
			return path
		}
	}
	return ""
}

// candidates lists executable names or absolute paths to try for goos.
func candidates(goos string, getenv func(string) string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
		}
	case "windows":
		var out []string
		for _, env := range []string{"PROGRAMFILES", "PROGRAMFILES(X86)", "LOCALAPPDATA"} {
			base := getenv(env)
			if base == "" {
				continue
			}
			out = append(out,
				base+`\Chromium\Application\chrome.exe`,
				base+`\Google\Chrome\Application\chrome.exe`,
			)
		}
		return out
	default:
		// camera boards ship chromium-browser; desktops usually chrome
		return []string{
			"chromium",
			"chromium-browser",
			"google-chrome-stable",
			"google-chrome",
		}
	}
}

// resolveExecutable returns nameOrPath if it is an existing absolute path,
// or its PATH lookup result for a bare command name.
func resolveExecutable(nameOrPath string) string {
	if nameOrPath == "" {
		return ""
	}
	if filepath.IsAbs(nameOrPath) || (len(nameOrPath) > 1 && nameOrPath[1] == ':') {
		if _, err := os.Stat(nameOrPath); err == nil {
			return nameOrPath
		}
		return ""
	}
	if path, err := exec.LookPath(nameOrPath); err == nil {
		return path
	}
	return ""
}
