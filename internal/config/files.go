package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	appName        = "taskledger"
	configFileName = "taskledger.toml"
)

// projectConfigNames are checked in order in the working directory.
var projectConfigNames = []string{configFileName, "." + configFileName}

// findProjectConfigFile looks for a config file in the current directory.
func findProjectConfigFile() string {
	for _, name := range projectConfigNames {
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name
		}
	}
	return ""
}

// findUserConfigFile looks for a user-level config file.
// Checks ~/.taskledger/taskledger.toml first, then the OS-specific config
// directory.
func findUserConfigFile() string {
	for _, path := range userConfigCandidates() {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func userConfigCandidates() []string {
	var out []string
	if home, err := os.UserHomeDir(); err == nil {
		out = append(out, filepath.Join(home, "."+appName, configFileName))
	}
	if dir := osUserConfigDir(); dir != "" {
		out = append(out, filepath.Join(dir, appName, configFileName))
	}
	return out
}

// UserConfigPath returns the preferred location for a new user config file.
func UserConfigPath() string {
	if c := userConfigCandidates(); len(c) > 0 {
		return c[0]
	}
	return ""
}

// osUserConfigDir returns the OS-specific user config directory, or "".
func osUserConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		return os.Getenv("APPDATA")
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support")
		}
	case "linux", "openbsd", "freebsd", "netbsd":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return xdg
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".config")
		}
	}
	return ""
}

// expandPath expands ~ and environment variables in p. On Windows %VAR%
// references are expanded as well.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	expanded := os.ExpandEnv(p)
	if runtime.GOOS == "windows" {
		expanded = expandWindowsEnv(expanded)
	}
	if expanded != "~" && !strings.HasPrefix(expanded, "~/") &&
		!(runtime.GOOS == "windows" && strings.HasPrefix(expanded, `~\`)) {
		return expanded
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return expanded
	}
	if expanded == "~" {
		return home
	}
	return filepath.Join(home, expanded[2:])
}

func expandWindowsEnv(p string) string {
	var b strings.Builder
	for {
		start := strings.IndexByte(p, '%')
		if start < 0 {
			break
		}
		end := strings.IndexByte(p[start+1:], '%')
		if end < 0 {
			break
		}
		key := p[start+1 : start+1+end]
		b.WriteString(p[:start])
		if val, ok := os.LookupEnv(key); ok && key != "" {
			b.WriteString(val)
		} else {
			b.WriteString(p[start : start+end+2])
		}
		p = p[start+end+2:]
	}
	b.WriteString(p)
	return b.String()
}
