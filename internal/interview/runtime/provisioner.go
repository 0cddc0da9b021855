package runtime

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	pkgerrors "assesy/pkg/errors"
	"assesy/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultImage        = "custom-code-server:latest"
	defaultNetwork      = "assesy_default_network"
	defaultInternalPort = 8443
	defaultProjectDir   = "/home/coder/project"
	defaultDomain       = "interview.localhost"
	defaultScheme       = "http"

	sessionPrefix = "session-"
	reviewPrefix  = "review-"
)

// Config describes how editor containers are built and routed.
type Config struct {
	Image        string `yaml:"image"`
	Network      string `yaml:"network"`
	InternalPort int    `yaml:"internalPort"`
	ProjectDir   string `yaml:"projectDir"`
	// Domain is the wildcard domain the reverse proxy serves, e.g. interview.localhost.
	Domain string `yaml:"domain"`
	Scheme string `yaml:"scheme"`
}

func (c *Config) applyDefaults() {
	if c.Image == "" {
		c.Image = defaultImage
	}
	if c.Network == "" {
		c.Network = defaultNetwork
	}
	if c.InternalPort <= 0 {
		c.InternalPort = defaultInternalPort
	}
	if c.ProjectDir == "" {
		c.ProjectDir = defaultProjectDir
	}
	if c.Domain == "" {
		c.Domain = defaultDomain
	}
	if c.Scheme == "" {
		c.Scheme = defaultScheme
	}
}

// MountMode is the access mode of the workspace bind mount.
type MountMode string

const (
	MountReadWrite MountMode = "rw"
	MountReadOnly  MountMode = "ro"
)

// ProvisionRequest describes one editor container.
type ProvisionRequest struct {
	Name          string
	WorkspacePath string
	Mode          MountMode
	RoutingHost   string
	AutoRemove    bool
	SessionID     string
}

// Status is the observed state of a named container.
type Status struct {
	Exists  bool   `json:"exists"`
	Running bool   `json:"running"`
	State   string `json:"state,omitempty"`
}

// Provisioner turns a workspace into a routed editor container.
type Provisioner struct {
	runtime Runtime
	cfg     Config
}

func NewProvisioner(rt Runtime, cfg Config) (*Provisioner, error) {
	if rt == nil {
		return nil, fmt.Errorf("runtime is required")
	}
	cfg.applyDefaults()
	return &Provisioner{runtime: rt, cfg: cfg}, nil
}

// SessionContainerName is the container name of a candidate environment.
func SessionContainerName(token string) string {
	return sessionPrefix + token
}

// ReviewContainerName is the container name of an evaluator environment.
func ReviewContainerName(token string) string {
	return reviewPrefix + token
}

// SessionHost is the routed host of a candidate environment.
func (p *Provisioner) SessionHost(token string) string {
	return token + "." + p.cfg.Domain
}

// ReviewHost is the routed host of an evaluator environment.
func (p *Provisioner) ReviewHost(token string) string {
	return reviewPrefix + token + "." + p.cfg.Domain
}

// URL returns the browser URL for a routed host.
func (p *Provisioner) URL(host string) string {
	return p.cfg.Scheme + "://" + host
}

// Provision creates and starts a container for req. A leftover container
// with the same name is removed first.
func (p *Provisioner) Provision(ctx context.Context, req ProvisionRequest) (string, error) {
	if req.Name == "" || req.WorkspacePath == "" || req.RoutingHost == "" {
		return "", pkgerrors.New(pkgerrors.InvalidParams).WithMessage("container name, workspace and host are required")
	}
	if req.Mode == "" {
		req.Mode = MountReadWrite
	}

	if err := p.removeStale(ctx, req.Name); err != nil {
		return "", err
	}

	id, err := p.runtime.Create(ctx, p.buildSpec(req))
	if err != nil {
		return "", pkgerrors.Wrapf(err, pkgerrors.RuntimeFailure, "create container %s failed", req.Name)
	}
	if err := p.runtime.Start(ctx, req.Name); err != nil {
		if rmErr := p.runtime.Remove(ctx, req.Name); rmErr != nil && !errors.Is(rmErr, ErrContainerNotFound) {
			logger.Warn(ctx, "remove unstarted container failed", zap.String("container", req.Name), zap.Error(rmErr))
		}
		return "", pkgerrors.Wrapf(err, pkgerrors.RuntimeFailure, "start container %s failed", req.Name)
	}

	logger.Info(ctx, "container started",
		zap.String("container", req.Name),
		zap.String("host", req.RoutingHost),
		zap.String("mode", string(req.Mode)),
	)
	return id, nil
}

func (p *Provisioner) buildSpec(req ProvisionRequest) ContainerSpec {
	port := strconv.Itoa(p.cfg.InternalPort)
	return ContainerSpec{
		Name:  req.Name,
		Image: p.cfg.Image,
		Env:   []string{"SESSION_ID=" + req.SessionID},
		Labels: map[string]string{
			"traefik.enable": "true",
			"traefik.http.routers." + req.Name + ".rule":                      "Host(`" + req.RoutingHost + "`)",
			"traefik.http.routers." + req.Name + ".service":                   req.Name,
			"traefik.http.services." + req.Name + ".loadbalancer.server.port": port,
			"traefik.docker.network":                                          p.cfg.Network,
		},
		Binds:        []string{req.WorkspacePath + ":" + p.cfg.ProjectDir + ":" + string(req.Mode)},
		NetworkMode:  p.cfg.Network,
		ExposedPorts: []string{port + "/tcp"},
		AutoRemove:   req.AutoRemove,
	}
}

func (p *Provisioner) removeStale(ctx context.Context, name string) error {
	_, err := p.runtime.Inspect(ctx, name)
	if errors.Is(err, ErrContainerNotFound) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.RuntimeFailure, "inspect container %s failed", name)
	}
	logger.Info(ctx, "removing stale container", zap.String("container", name))
	if err := p.runtime.Remove(ctx, name); err != nil && !errors.Is(err, ErrContainerNotFound) {
		return pkgerrors.Wrapf(err, pkgerrors.RuntimeFailure, "remove stale container %s failed", name)
	}
	return nil
}

// Stop stops a container. A missing container counts as stopped.
func (p *Provisioner) Stop(ctx context.Context, name string) error {
	if err := p.runtime.Stop(ctx, name); err != nil && !errors.Is(err, ErrContainerNotFound) {
		return pkgerrors.Wrapf(err, pkgerrors.RuntimeFailure, "stop container %s failed", name)
	}
	return nil
}

// Remove deletes a container. A missing container counts as removed.
func (p *Provisioner) Remove(ctx context.Context, name string) error {
	if err := p.runtime.Remove(ctx, name); err != nil && !errors.Is(err, ErrContainerNotFound) {
		return pkgerrors.Wrapf(err, pkgerrors.RuntimeFailure, "remove container %s failed", name)
	}
	return nil
}

// StopAndRemove stops then removes a container, tolerating either step
// finding nothing.
func (p *Provisioner) StopAndRemove(ctx context.Context, name string) error {
	if err := p.Stop(ctx, name); err != nil {
		return err
	}
	return p.Remove(ctx, name)
}

// Status reports whether the named container exists and runs.
func (p *Provisioner) Status(ctx context.Context, name string) (Status, error) {
	state, err := p.runtime.Inspect(ctx, name)
	if errors.Is(err, ErrContainerNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, pkgerrors.Wrapf(err, pkgerrors.RuntimeFailure, "inspect container %s failed", name)
	}
	return Status{Exists: true, Running: state.Running, State: state.Status}, nil
}
