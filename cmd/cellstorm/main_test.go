package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfg, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "cellstorm dev\n") {
		t.Errorf("version output = %q", out)
	}
}

func TestRender(t *testing.T) {
	suite := filepath.Join(t.TempDir(), "sums.suite")
	if err := os.WriteFile(suite, []byte("suite sums\n1 + 1 == 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, err := execute(t, "render", "--plain", "--frame=false", "-n", suite)
	if err != nil {
		t.Fatal(err)
	}
	want := "1 suite sums\n2   assert 1 + 1 == 2\n"
	if out != want {
		t.Errorf("render =\n%q\nwant\n%q", out, want)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := execute(t, "--log-level", "loud", "render")
	if err == nil || !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("err = %v", err)
	}
}

func TestUnknownDocument(t *testing.T) {
	_, _, err := execute(t, "render", "--document", "nope")
	if err == nil || !strings.Contains(err.Error(), "no such document") {
		t.Errorf("err = %v", err)
	}
}
