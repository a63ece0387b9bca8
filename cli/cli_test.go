package cli_test

import (
	"io"
	"testing"

	"github.com/xraph/cascade/cli"
)

func TestRootCmd_Commands(t *testing.T) {
	root := cli.NewRootCmd()

	want := []string{"serve", "links", "start", "deadletters", "schedules", "triggers", "status", "watch"}
	have := make(map[string]bool)
	for _, c := range root.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("command %q missing from the tree", name)
		}
	}
}

func TestLinksApply_InvalidJSON(t *testing.T) {
	root := cli.NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"links", "apply", "{not json"})

	if err := root.Execute(); err == nil {
		t.Fatal("apply accepted invalid config json")
	}
}

func TestStart_RejectsUnknownKind(t *testing.T) {
	root := cli.NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"start", "realtime", "report"})

	if err := root.Execute(); err == nil {
		t.Fatal("start accepted an unknown kind")
	}
}

func TestTriggersAdd_RequiresFlags(t *testing.T) {
	root := cli.NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"triggers", "add", "--name", "nightly"})

	if err := root.Execute(); err == nil {
		t.Fatal("add accepted a trigger without schedule and job")
	}
}
