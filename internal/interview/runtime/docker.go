package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
)

// DockerConfig selects the Docker Engine endpoint.
type DockerConfig struct {
	// Host overrides DOCKER_HOST, e.g. unix:///var/run/docker.sock.
	Host string `yaml:"host"`
	// StopTimeout is the grace period given to a container before it is killed.
	StopTimeout time.Duration `yaml:"stopTimeout"`
}

// DockerRuntime implements Runtime on the Docker Engine API.
type DockerRuntime struct {
	cli         *client.Client
	stopTimeout time.Duration
}

func NewDockerRuntime(cfg DockerConfig) (*DockerRuntime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client failed: %w", err)
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	return &DockerRuntime{cli: cli, stopTimeout: cfg.StopTimeout}, nil
}

// Ping checks that the engine answers.
func (d *DockerRuntime) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping failed: %w", err)
	}
	return nil
}

func (d *DockerRuntime) Close() error {
	return d.cli.Close()
}

func (d *DockerRuntime) Create(ctx context.Context, spec ContainerSpec) (string, error) {
	exposed, _, err := nat.ParsePortSpecs(spec.ExposedPorts)
	if err != nil {
		return "", fmt.Errorf("parse exposed ports: %w", err)
	}
	cfg := &container.Config{
		Image:        spec.Image,
		Env:          spec.Env,
		Labels:       spec.Labels,
		ExposedPorts: exposed,
	}
	hostCfg := &container.HostConfig{
		Binds:       spec.Binds,
		NetworkMode: container.NetworkMode(spec.NetworkMode),
		AutoRemove:  spec.AutoRemove,
	}
	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("create container %s: %w", spec.Name, err)
	}
	return resp.ID, nil
}

func (d *DockerRuntime) Start(ctx context.Context, name string) error {
	if err := d.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return d.translate(err, "start container %s", name)
	}
	return nil
}

func (d *DockerRuntime) Stop(ctx context.Context, name string) error {
	seconds := int(d.stopTimeout / time.Second)
	if err := d.cli.ContainerStop(ctx, name, container.StopOptions{Timeout: &seconds}); err != nil {
		return d.translate(err, "stop container %s", name)
	}
	return nil
}

func (d *DockerRuntime) Remove(ctx context.Context, name string) error {
	if err := d.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true}); err != nil {
		return d.translate(err, "remove container %s", name)
	}
	return nil
}

func (d *DockerRuntime) Inspect(ctx context.Context, name string) (ContainerState, error) {
	info, err := d.cli.ContainerInspect(ctx, name)
	if err != nil {
		return ContainerState{}, d.translate(err, "inspect container %s", name)
	}
	state := ContainerState{}
	if info.ContainerJSONBase != nil {
		state.ID = info.ID
		if info.State != nil {
			state.Running = info.State.Running
			state.Status = info.State.Status
		}
	}
	return state, nil
}

func (d *DockerRuntime) translate(err error, format string, args ...interface{}) error {
	if errdefs.IsNotFound(err) {
		return ErrContainerNotFound
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

var _ Runtime = (*DockerRuntime)(nil)
