package containerapi_test

import (
	"reflect"
	"testing"

	"hubkeep/src/containerapi"
)

func TestFake_StopStartAndOrder(t *testing.T) {
	f := containerapi.NewFake()
	f.Containers["db"] = true
	f.Containers["web"] = true
	f.Containers["idle"] = false

	running, err := f.ListRunning()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(running, []string{"db", "web"}) {
		t.Fatalf("running: %v", running)
	}
	all, err := f.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("all: %v", all)
	}

	if err := f.Stop("db"); err != nil {
		t.Fatal(err)
	}
	if err := f.Start("db"); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(f.Calls, []string{"stop:db", "start:db"}) {
		t.Fatalf("calls: %v", f.Calls)
	}
}

func TestFake_InjectedFailures(t *testing.T) {
	f := containerapi.NewFake()
	f.Containers["db"] = true
	f.FailStop["db"] = true
	if err := f.Stop("db"); err == nil {
		t.Fatal("expected injected stop failure")
	}
	if err := f.Start("ghost"); err == nil {
		t.Fatal("expected error for unknown container")
	}
}

func TestFake_Unreachable(t *testing.T) {
	f := containerapi.NewFake()
	f.Unreachable = true
	if _, err := f.ListAll(); err == nil {
		t.Fatal("expected unreachable error")
	}
	if err := f.Start("x"); err == nil {
		t.Fatal("expected unreachable error")
	}
}
