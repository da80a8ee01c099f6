package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStarvationCommand(t *testing.T) {
	out, err := run(t, "--readers=4", "--hold=5ms", "--writer-delay=50ms", "--run=300ms", "--metrics")
	require.NoError(t, err)
	require.Contains(t, out, "writer acquired after")
}

func TestUnknownLock(t *testing.T) {
	_, err := run(t, "--lock=spin", "--run=300ms", "--writer-delay=50ms")
	require.ErrorContains(t, err, "unknown lock")
}

func TestInvalidConfig(t *testing.T) {
	_, err := run(t, "--readers=0")
	require.ErrorContains(t, err, "invalid scenario")
}
