// Package compose drives "docker compose" for the resolved service list.
package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/codex-k8s/localaictl/internal/config"
	"github.com/codex-k8s/localaictl/internal/lifecycle"
	"github.com/codex-k8s/localaictl/internal/logging"
	"github.com/codex-k8s/localaictl/internal/resolver"
)

// noProfile disables the --profile flag.
const noProfile = "none"

// Runner executes a command in dir.
type Runner interface {
	Run(ctx context.Context, dir string, stdout, stderr io.Writer, name string, args ...string) error
}

// execRunner runs commands with os/exec.
type execRunner struct {
	env []string
}

func (r execRunner) Run(ctx context.Context, dir string, stdout, stderr io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	return cmd.Run()
}

// Client wraps docker compose execution for one project.
// It implements lifecycle.Gateway.
type Client struct {
	cfg    *config.Config
	logger *slog.Logger
	runner Runner
	sleep  func(context.Context, time.Duration) error
}

var _ lifecycle.Gateway = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(c *Client) { c.runner = r }
}

// WithSleep replaces the wait used after starting external deployments.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// NewClient constructs a compose client for cfg.
func NewClient(cfg *config.Config, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	var env []string
	if cfg.Docker.Host != "" {
		env = append(env, "DOCKER_HOST="+cfg.Docker.Host)
	}
	c := &Client{
		cfg:    cfg,
		logger: logger,
		runner: execRunner{env: env},
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start starts external deployments first, waits for them to settle, then starts req.Services.
func (c *Client) Start(ctx context.Context, req lifecycle.StartRequest) (lifecycle.Outcome, error) {
	outcome := lifecycle.NewOutcome("start", req.Services)
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	for _, ext := range req.External {
		args := c.baseArgs()
		args = appendFiles(args, ext.ComposeFile)
		args = appendFiles(args, c.cfg.ExternalOverridesFor(ext.Service, req.Environment)...)
		args = append(args, "up", "-d")
		c.logger.Info("starting external deployment", "service", ext.Service, "file", ext.ComposeFile)
		if err := c.run(ctx, args); err != nil {
			err = fmt.Errorf("start external deployment %q: %w", ext.Service, err)
			return outcome.Finish(err), err
		}
	}
	if len(req.External) > 0 && c.cfg.Timeouts.ExternalSettle > 0 {
		c.logger.Info("waiting for external deployments", "delay", c.cfg.Timeouts.ExternalSettle)
		if err := c.sleep(ctx, c.cfg.Timeouts.ExternalSettle); err != nil {
			return outcome.Finish(err), err
		}
	}

	if len(req.Services) > 0 {
		args := c.projectArgs(req.Profile, req.Environment, req.External)
		args = append(args, "up", "-d")
		args = append(args, req.Services...)
		c.logger.Info("starting services", "profile", req.Profile, "environment", req.Environment, "services", req.Services)
		if err := c.run(ctx, args); err != nil {
			err = fmt.Errorf("start services: %w", err)
			return outcome.Finish(err), err
		}
	}
	return outcome.Finish(nil), nil
}

// Stop stops req.Services, or tears the project down when req.All or req.RemoveVolumes is set.
func (c *Client) Stop(ctx context.Context, req lifecycle.StopRequest) (lifecycle.Outcome, error) {
	outcome := lifecycle.NewOutcome("stop", req.Services)
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	args := c.projectArgs(req.Profile, req.Environment, req.External)
	switch {
	case req.All || req.RemoveVolumes:
		outcome.Action = "down"
		args = append(args, "down")
		if req.RemoveVolumes {
			args = append(args, "-v", "--remove-orphans")
		}
	case len(req.Services) == 0:
		return outcome.Finish(nil), nil
	default:
		args = append(args, "stop")
		args = append(args, req.Services...)
	}

	c.logger.Info("stopping services", "action", outcome.Action, "services", req.Services, "volumes", req.RemoveVolumes)
	if err := c.run(ctx, args); err != nil {
		err = fmt.Errorf("%s services: %w", outcome.Action, err)
		return outcome.Finish(err), err
	}
	return outcome.Finish(nil), nil
}

// Status reports the state of each id from "docker compose ps".
func (c *Client) Status(ctx context.Context, ids []string) (map[string]lifecycle.State, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	args := append(c.baseArgs(), "ps", "--all", "--format", "json")
	var stdout bytes.Buffer
	stderr := logging.NewWriter(c.logger, "docker compose").WithLevel(logging.LevelDebug)
	err := c.runner.Run(ctx, c.cfg.ProjectDir, &stdout, stderr, c.binary(), args...)
	stderr.Flush()
	if err != nil {
		return nil, fmt.Errorf("docker %s failed: %w", strings.Join(args, " "), err)
	}

	containers, err := parsePS(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	return aggregateStates(ids, containers), nil
}

// baseArgs returns "compose -p <project>".
func (c *Client) baseArgs() []string {
	return []string{"compose", "-p", c.cfg.Project}
}

// projectArgs returns the base args plus profile and the compose file set of the main project.
func (c *Client) projectArgs(profile, environment string, external []resolver.ExternalDeployment) []string {
	args := c.baseArgs()
	if profile != "" && profile != noProfile {
		args = append(args, "--profile", profile)
	}
	args = appendFiles(args, c.cfg.ComposeFiles...)
	for _, ext := range external {
		if _, err := os.Stat(c.cfg.Path(ext.ComposeFile)); err == nil {
			args = appendFiles(args, ext.ComposeFile)
		}
	}
	return appendFiles(args, c.cfg.EnvironmentOverrides[environment]...)
}

func appendFiles(args []string, files ...string) []string {
	for _, f := range files {
		if strings.TrimSpace(f) != "" {
			args = append(args, "-f", f)
		}
	}
	return args
}

func (c *Client) run(ctx context.Context, args []string) error {
	out := logging.NewWriter(c.logger, "docker compose")
	defer out.Flush()
	if err := c.runner.Run(ctx, c.cfg.ProjectDir, out, out, c.binary(), args...); err != nil {
		return fmt.Errorf("docker %s failed: %w", strings.Join(args, " "), err)
	}
	return nil
}

func (c *Client) binary() string {
	if c.cfg.Docker.Binary == "" {
		return "docker"
	}
	return c.cfg.Docker.Binary
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeouts.Compose <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.Timeouts.Compose)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsNotInstalled reports whether err means the docker binary could not be found.
func IsNotInstalled(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
