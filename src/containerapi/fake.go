package containerapi

import (
	"fmt"
	"sort"
)

// FakeClient is an in-memory implementation for unit tests. It records
// the order of Stop/Start calls so tests can assert ordering guarantees.
type FakeClient struct {
	// Containers maps name -> running.
	Containers map[string]bool
	// FailStop / FailStart name containers whose stop/start should error.
	FailStop  map[string]bool
	FailStart map[string]bool
	// Calls records "stop:<name>" / "start:<name>" in invocation order.
	Calls []string
	// Unreachable makes every call fail, simulating a down runtime.
	Unreachable bool
}

func NewFake() *FakeClient {
	return &FakeClient{
		Containers: map[string]bool{},
		FailStop:   map[string]bool{},
		FailStart:  map[string]bool{},
	}
}

func (f *FakeClient) ListRunning() ([]string, error) {
	if f.Unreachable {
		return nil, fmt.Errorf("runtime unreachable")
	}
	var names []string
	for name, running := range f.Containers {
		if running {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *FakeClient) ListAll() ([]string, error) {
	if f.Unreachable {
		return nil, fmt.Errorf("runtime unreachable")
	}
	names := make([]string, 0, len(f.Containers))
	for name := range f.Containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *FakeClient) Stop(name string) error {
	if f.Unreachable {
		return fmt.Errorf("runtime unreachable")
	}
	f.Calls = append(f.Calls, "stop:"+name)
	if f.FailStop[name] {
		return fmt.Errorf("stop %s: injected failure", name)
	}
	if _, ok := f.Containers[name]; !ok {
		return fmt.Errorf("stop %s: no such container", name)
	}
	f.Containers[name] = false
	return nil
}

func (f *FakeClient) Start(name string) error {
	if f.Unreachable {
		return fmt.Errorf("runtime unreachable")
	}
	f.Calls = append(f.Calls, "start:"+name)
	if f.FailStart[name] {
		return fmt.Errorf("start %s: injected failure", name)
	}
	if _, ok := f.Containers[name]; !ok {
		return fmt.Errorf("start %s: no such container", name)
	}
	f.Containers[name] = true
	return nil
}
