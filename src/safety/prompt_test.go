package safety_test

import (
	"bytes"
	"strings"
	"testing"

	"hubkeep/src/safety"
)

func TestConfirm_AutoYes(t *testing.T) {
	var out bytes.Buffer
	ok, err := safety.Confirm(safety.Options{Yes: true}, strings.NewReader(""), &out, "proceed?")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected auto-yes to confirm")
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected prompt output: %q", out.String())
	}
}

func TestConfirm_Force(t *testing.T) {
	ok, err := safety.Confirm(safety.Options{Force: true}, strings.NewReader(""), nil, "proceed?")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected force to confirm")
	}
}

func TestConfirm_DryRun(t *testing.T) {
	ok, err := safety.Confirm(safety.Options{DryRun: true, Yes: true}, strings.NewReader("y\n"), nil, "proceed?")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected dry-run to decline")
	}
}

func TestConfirm_UserInput(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"Y\n", true},
		{"No\n", false},
		{"\n", false},
		{"", false}, // EOF without input
	}
	for _, c := range cases {
		var out bytes.Buffer
		got, err := safety.Confirm(safety.Options{}, strings.NewReader(c.in), &out, "replace data root?")
		if err != nil {
			t.Fatal(err)
		}
		if got != c.want {
			t.Fatalf("input %q: got %v want %v", c.in, got, c.want)
		}
		if !strings.Contains(out.String(), "replace data root?") {
			t.Fatalf("prompt missing question; got %q", out.String())
		}
	}
}
