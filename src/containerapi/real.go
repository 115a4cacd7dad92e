package containerapi

import (
	"fmt"

	incuscli "github.com/lxc/incus/client"
	"github.com/lxc/incus/shared/api"
)

// RealClient wraps the official Incus Go client.
type RealClient struct {
	c incuscli.InstanceServer
}

// ConnectLocal connects to the local Incus daemon via the UNIX socket.
func ConnectLocal() (*RealClient, error) {
	c, err := incuscli.ConnectIncusUnix("", nil)
	if err != nil {
		return nil, fmt.Errorf("connect incus: %w", err)
	}
	return &RealClient{c: c}, nil
}

func (r *RealClient) ListRunning() ([]string, error) {
	instances, err := r.c.GetInstances(api.InstanceTypeAny)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, inst := range instances {
		if inst.StatusCode == api.Running {
			names = append(names, inst.Name)
		}
	}
	return names, nil
}

func (r *RealClient) ListAll() ([]string, error) {
	return r.c.GetInstanceNames(api.InstanceTypeAny)
}

func (r *RealClient) Stop(name string) error {
	return r.changeState(name, "stop")
}

func (r *RealClient) Start(name string) error {
	return r.changeState(name, "start")
}

func (r *RealClient) changeState(name, action string) error {
	req := api.InstanceStatePut{Action: action, Timeout: -1}
	op, err := r.c.UpdateInstanceState(name, req, "")
	if err != nil {
		return fmt.Errorf("%s %s: %w", action, name, err)
	}
	if err := op.Wait(); err != nil {
		return fmt.Errorf("%s %s: %w", action, name, err)
	}
	return nil
}
