// Package runtimetest provides an in-memory container runtime for tests.
package runtimetest

import (
	"context"
	"fmt"
	"sync"

	"assesy/internal/interview/runtime"
)

// Container is the fake's record of one container.
type Container struct {
	Spec    runtime.ContainerSpec
	ID      string
	Running bool
}

// Runtime is a concurrency-safe in-memory runtime.Runtime. Containers
// created with AutoRemove disappear when stopped, like Docker's.
type Runtime struct {
	mu         sync.Mutex
	containers map[string]*Container
	seq        int

	// CreateErr, StartErr and StopErr are returned by the matching call when set.
	CreateErr error
	StartErr  error
	StopErr   error
	// InspectErr simulates an unreachable engine.
	InspectErr error

	Creates int
	Starts  int
	Stops   int
	Removes int
	// Gate, when set, blocks Create until it is closed.
	Gate chan struct{}
}

func New() *Runtime {
	return &Runtime{containers: make(map[string]*Container)}
}

func (r *Runtime) Create(ctx context.Context, spec runtime.ContainerSpec) (string, error) {
	if r.Gate != nil {
		select {
		case <-r.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Creates++
	if r.CreateErr != nil {
		return "", r.CreateErr
	}
	if _, exists := r.containers[spec.Name]; exists {
		return "", fmt.Errorf("conflict: container name %s already in use", spec.Name)
	}
	r.seq++
	id := fmt.Sprintf("ctr-%d", r.seq)
	r.containers[spec.Name] = &Container{Spec: spec, ID: id}
	return id, nil
}

func (r *Runtime) Start(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Starts++
	if r.StartErr != nil {
		return r.StartErr
	}
	c, ok := r.containers[name]
	if !ok {
		return runtime.ErrContainerNotFound
	}
	c.Running = true
	return nil
}

func (r *Runtime) Stop(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stops++
	if r.StopErr != nil {
		return r.StopErr
	}
	c, ok := r.containers[name]
	if !ok {
		return runtime.ErrContainerNotFound
	}
	c.Running = false
	if c.Spec.AutoRemove {
		delete(r.containers, name)
	}
	return nil
}

func (r *Runtime) Remove(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Removes++
	if _, ok := r.containers[name]; !ok {
		return runtime.ErrContainerNotFound
	}
	delete(r.containers, name)
	return nil
}

func (r *Runtime) Inspect(_ context.Context, name string) (runtime.ContainerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InspectErr != nil {
		return runtime.ContainerState{}, r.InspectErr
	}
	c, ok := r.containers[name]
	if !ok {
		return runtime.ContainerState{}, runtime.ErrContainerNotFound
	}
	status := "exited"
	if c.Running {
		status = "running"
	}
	return runtime.ContainerState{ID: c.ID, Running: c.Running, Status: status}, nil
}

// Put registers a container directly, bypassing Create.
func (r *Runtime) Put(spec runtime.ContainerSpec, running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.containers[spec.Name] = &Container{Spec: spec, ID: fmt.Sprintf("ctr-%d", r.seq), Running: running}
}

// Get returns a copy of the named container.
func (r *Runtime) Get(name string) (Container, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.containers[name]
	if !ok {
		return Container{}, false
	}
	return *c, true
}

// Counts returns the call counters under the lock.
func (r *Runtime) Counts() (creates, starts, stops, removes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Creates, r.Starts, r.Stops, r.Removes
}

var _ runtime.Runtime = (*Runtime)(nil)
