package runtime

import (
	"context"
	"errors"
)

// ErrContainerNotFound is the only signal a Runtime uses for "no such container".
var ErrContainerNotFound = errors.New("container not found")

// Runtime is the capability surface the provisioner needs from a container
// engine. Containers are addressed by name.
type Runtime interface {
	Create(ctx context.Context, spec ContainerSpec) (string, error)
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
	Inspect(ctx context.Context, name string) (ContainerState, error)
}

// ContainerSpec describes a container to create.
type ContainerSpec struct {
	Name         string
	Image        string
	Env          []string
	Labels       map[string]string
	Binds        []string
	NetworkMode  string
	ExposedPorts []string
	AutoRemove   bool
}

// ContainerState is the observed state of an existing container.
type ContainerState struct {
	ID      string
	Running bool
	Status  string
}
