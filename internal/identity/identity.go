// Package identity collects the user and git context attached to hook
// payloads.
package identity

import (
	"context"
	"os"
	"os/exec"
	"os/user"
	"strings"
	"time"
)

// CommandTimeout bounds each git invocation.
const CommandTimeout = 2 * time.Second

// GitRunner executes git commands.
type GitRunner interface {
	Run(ctx context.Context, args []string, dir string) (string, error)
}

// ExecGitRunner implements GitRunner using os/exec.
type ExecGitRunner struct{}

func (ExecGitRunner) Run(ctx context.Context, args []string, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.Output()
	return strings.TrimSpace(string(out)), err
}

// Collector gathers user and git info. Every field is best effort: a
// failing lookup leaves its key out.
type Collector struct {
	git        GitRunner
	githubUser string
	lookupEnv  func(string) (string, bool)
	osUser     func() string
}

type Option func(*Collector)

// WithGitHubUser sets the github username, overriding $GITHUB_USER.
func WithGitHubUser(name string) Option {
	return func(c *Collector) { c.githubUser = name }
}

func WithGitRunner(r GitRunner) Option {
	return func(c *Collector) { c.git = r }
}

func WithEnv(lookup func(string) (string, bool)) Option {
	return func(c *Collector) { c.lookupEnv = lookup }
}

func WithOSUser(fn func() string) Option {
	return func(c *Collector) { c.osUser = fn }
}

func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		git:       ExecGitRunner{},
		lookupEnv: os.LookupEnv,
		osUser:    currentOSUser,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// User returns {githubUsername, email, osUser}, or nil when nothing is
// known.
func (c *Collector) User(ctx context.Context, dir string) map[string]any {
	info := map[string]any{}

	github := c.githubUser
	if github == "" {
		github, _ = c.lookupEnv("GITHUB_USER")
	}
	if github != "" {
		info["githubUsername"] = github
	}
	if email, err := c.git.Run(ctx, []string{"config", "user.email"}, dir); err == nil && email != "" {
		info["email"] = email
	}
	if name := c.osUser(); name != "" {
		info["osUser"] = name
	}

	if len(info) == 0 {
		return nil
	}
	return info
}

// Git returns {branch, remote, commit} for the repository containing dir,
// or nil when dir is not inside one.
func (c *Collector) Git(ctx context.Context, dir string) map[string]any {
	info := map[string]any{}

	queries := []struct {
		key  string
		args []string
	}{
		{"branch", []string{"rev-parse", "--abbrev-ref", "HEAD"}},
		{"remote", []string{"config", "--get", "remote.origin.url"}},
		{"commit", []string{"rev-parse", "HEAD"}},
	}
	for _, q := range queries {
		if out, err := c.git.Run(ctx, q.args, dir); err == nil && out != "" {
			info[q.key] = out
		}
	}

	if len(info) == 0 {
		return nil
	}
	return info
}

func currentOSUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	if name, ok := os.LookupEnv("USER"); ok {
		return name
	}
	return ""
}
