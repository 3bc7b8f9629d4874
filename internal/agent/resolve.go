package agent

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// resolvedPaths caches the executable path per agent type for the
// process lifetime. The cache is never invalidated; installing an agent
// mid-run requires a restart.
var (
	resolveMu     sync.Mutex
	resolvedPaths = map[Type]string{}
	resolvedDone  = map[Type]bool{}
)

// ResolveExecutable returns the path of the agent executable, or ""
// when none could be found. customPath, when set, wins if it points at
// a regular executable file; otherwise the widened search path is
// consulted. The result is cached per process.
func ResolveExecutable(t Type, customPath string) string {
	resolveMu.Lock()
	defer resolveMu.Unlock()

	if resolvedDone[t] {
		return resolvedPaths[t]
	}

	path := resolve(t, customPath)
	resolvedPaths[t] = path
	resolvedDone[t] = true
	return path
}

func resolve(t Type, customPath string) string {
	if customPath != "" && isExecutableFile(customPath) {
		return customPath
	}
	return lookPath(t.executableName())
}

// isExecutableFile reports whether path is a regular file carrying
// execute permission (permission is not checked on Windows).
func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0111 != 0
}

// lookPath searches the widened executable search path for name.
func lookPath(name string) string {
	for _, dir := range searchDirs() {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if isExecutableFile(candidate) {
			return candidate
		}
	}
	return ""
}

// searchDirs returns PATH widened with common install locations
// prepended: package-manager bin dirs and user-local bin dirs. Existing
// PATH entries are not duplicated.
func searchDirs() []string {
	extra := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
	}
	if home, err := os.UserHomeDir(); err == nil {
		extra = append(extra,
			filepath.Join(home, ".local", "bin"),
			filepath.Join(home, "bin"),
			filepath.Join(home, ".npm-global", "bin"),
			filepath.Join(home, ".bun", "bin"),
		)
	}

	existing := filepath.SplitList(os.Getenv("PATH"))
	seen := make(map[string]bool, len(existing)+len(extra))
	for _, dir := range existing {
		seen[dir] = true
	}

	dirs := make([]string, 0, len(existing)+len(extra))
	for _, dir := range extra {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	dirs = append(dirs, existing...)
	return dirs
}

// resetResolveCache clears the resolution cache. Test helper only.
func resetResolveCache() {
	resolveMu.Lock()
	defer resolveMu.Unlock()
	resolvedPaths = map[Type]string{}
	resolvedDone = map[Type]bool{}
}
