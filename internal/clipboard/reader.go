package clipboard

import (
	"os/exec"
	"runtime"
	"strings"
)

// SystemReader returns a ReadFunc backed by the platform's clipboard
// utility: xclip/xsel on Linux, pbpaste on macOS, powershell on Windows.
// There is no cross-platform clipboard API without a display toolkit, so
// shelling out is the portable approach; a missing utility or read failure
// yields an empty string, which the watcher treats as "nothing to capture".
func SystemReader() ReadFunc {
	switch runtime.GOOS {
	case "darwin":
		return commandReader("pbpaste")
	case "windows":
		return commandReader("powershell", "-NoProfile", "-Command", "Get-Clipboard")
	default:
		if _, err := exec.LookPath("xclip"); err == nil {
			return commandReader("xclip", "-selection", "clipboard", "-o")
		}
		return commandReader("xsel", "-b", "-o")
	}
}

func commandReader(name string, args ...string) ReadFunc {
	return func() string {
		out, err := exec.Command(name, args...).Output()
		if err != nil {
			return ""
		}
		return strings.TrimRight(string(out), "\n")
	}
}
