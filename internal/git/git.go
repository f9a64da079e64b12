package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bassemshaker/phpsrv/internal/platform"
)

// commandTimeout bounds every git invocation
const commandTimeout = 5 * time.Second

// Info is the repository metadata shown for a project
type Info struct {
	Name      string
	Branch    string
	RemoteURL string
}

// IsRepo checks if the given directory is a git repository
func IsRepo(dir string) bool {
	cleanedDir, err := platform.ValidateDir(dir)
	if err != nil {
		return false
	}

	// Check if .git exists (a file for worktrees and submodules)
	if platform.FileExists(filepath.Join(cleanedDir, ".git")) {
		return true
	}

	_, err = run(cleanedDir, "rev-parse", "--git-dir")
	return err == nil
}

// RemoteURL returns the origin remote URL, or "" when there is none
func RemoteURL(dir string) string {
	cleanedDir, err := platform.ValidateDir(dir)
	if err != nil {
		zap.L().Debug("git: invalid directory for RemoteURL", zap.String("dir", dir), zap.Error(err))
		return ""
	}

	out, err := run(cleanedDir, "config", "--get", "remote.origin.url")
	if err != nil {
		return ""
	}
	return out
}

// GetRepoName returns the repository name from git remote or directory name
func GetRepoName(dir string) string {
	if url := RemoteURL(dir); url != "" {
		return repoNameFromURL(url)
	}
	if cleanedDir, err := platform.ValidateDir(dir); err == nil {
		return filepath.Base(cleanedDir)
	}
	return filepath.Base(dir)
}

func repoNameFromURL(url string) string {
	url = strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	// scp-like remotes use a colon before the path
	if i := strings.LastIndexAny(url, "/:"); i >= 0 {
		return url[i+1:]
	}
	return url
}

// GetBranch returns the current git branch name, or "" outside a repository
func GetBranch(dir string) string {
	cleanedDir, err := platform.ValidateDir(dir)
	if err != nil {
		zap.L().Debug("git: invalid directory for GetBranch", zap.String("dir", dir), zap.Error(err))
		return ""
	}

	out, err := run(cleanedDir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		zap.L().Debug("git: failed to get branch", zap.String("dir", cleanedDir), zap.Error(err))
		return ""
	}
	return out
}

// GetInfo fetches the repository name, branch and remote in parallel.
// The zero Info is returned for a directory that is not a repository.
func GetInfo(dir string) Info {
	if !IsRepo(dir) {
		return Info{}
	}

	var wg sync.WaitGroup
	var info Info

	wg.Add(2)
	go func() {
		defer wg.Done()
		info.RemoteURL = RemoteURL(dir)
	}()
	go func() {
		defer wg.Done()
		info.Branch = GetBranch(dir)
	}()
	wg.Wait()

	if info.RemoteURL != "" {
		info.Name = repoNameFromURL(info.RemoteURL)
	} else {
		info.Name = GetRepoName(dir)
	}
	return info
}

func run(dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}
