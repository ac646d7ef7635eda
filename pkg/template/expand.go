// Package template provides placeholder expansion for configured paths.
package template

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
)

// Expand expands template placeholders in the input string.
//
// Supported placeholders:
//   {home}      - Current user's home directory
//   {tmp}       - System temporary directory
//   {cwd}       - Current working directory
//   {user}      - Current username
//   {hostname}  - System hostname
//   {arch}      - System architecture (e.g., amd64, arm64)
//
// Custom values can be provided via the vars map, which will override
// built-in placeholders.
func Expand(text string, vars map[string]string) string {
	placeholders := map[string]string{
		"tmp":  os.TempDir(),
		"arch": runtime.GOARCH,
	}

	if home, err := os.UserHomeDir(); err == nil {
		placeholders["home"] = home
	} else {
		placeholders["home"] = "."
	}

	if cwd, err := os.Getwd(); err == nil {
		placeholders["cwd"] = cwd
	} else {
		placeholders["cwd"] = "."
	}

	if u, err := user.Current(); err == nil {
		placeholders["user"] = u.Username
	} else {
		placeholders["user"] = "unknown"
	}

	if h, err := os.Hostname(); err == nil {
		// Remove domain part if present
		placeholders["hostname"] = strings.Split(h, ".")[0]
	} else {
		placeholders["hostname"] = "unknown"
	}

	// Override with custom vars
	for k, v := range vars {
		placeholders[k] = v
	}

	// Replace placeholders
	result := text
	for key, value := range placeholders {
		result = strings.ReplaceAll(result, "{"+key+"}", value)
	}

	return result
}

// ExpandPath expands placeholders in a filesystem path and resolves a
// leading "~" to the user's home directory.
func ExpandPath(path string) string {
	expanded := Expand(path, nil)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			expanded = filepath.Join(home, strings.TrimPrefix(expanded[1:], "/"))
		}
	}
	return filepath.Clean(expanded)
}
