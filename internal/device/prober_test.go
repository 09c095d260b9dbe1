package device

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tungetti/cts/internal/errors"
	"github.com/tungetti/cts/internal/exec"
)

func newTestProber(runner exec.Runner) *EnumeratorProber {
	return NewProber(runner, WithBinDir("/opt/coral"), WithProbeTimeout(time.Second))
}

func TestProbeUSB(t *testing.T) {
	runner := exec.NewMockRunner()
	runner.SetResponse("lstpu", exec.SuccessResult("0  USB  /sys/bus/usb/devices/2-1\n"))

	topo, err := newTestProber(runner).Probe(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, topo.Count)
	assert.Equal(t, InterfaceUSB, topo.Interface)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/opt/coral/lstpu", calls[0].Path)
	assert.Equal(t, time.Second, calls[0].Timeout)
}

func TestProbeZeroDevicesSucceeds(t *testing.T) {
	runner := exec.NewMockRunner()
	runner.SetResponse("lstpu", exec.SuccessResult(""))

	topo, err := newTestProber(runner).Probe(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, topo.Count)
	assert.False(t, topo.HasDevices())
}

func TestProbeFailures(t *testing.T) {
	tests := []struct {
		name     string
		result   *exec.Result
		contains string
	}{
		{
			name:     "missing enumerator",
			result:   exec.ErrorResult(errors.New(errors.NotFound, "executable not found: /opt/coral/lstpu")),
			contains: "/opt/coral/lstpu not found",
		},
		{
			name:     "cannot start",
			result:   exec.ErrorResult(errors.New(errors.Execution, "permission denied")),
			contains: "cannot run",
		},
		{
			name:     "non-zero exit without list",
			result:   exec.FailureResult(1, "Failed to enumerate devices\n"),
			contains: "exited with code 1 without a device list",
		},
		{
			name:     "crashed",
			result:   exec.SignalResult("segmentation fault", ""),
			contains: "killed by segmentation fault",
		},
		{
			name:     "timed out",
			result:   exec.TimeoutResult(errors.ErrTimeout, ""),
			contains: "did not finish",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := exec.NewMockRunner()
			runner.SetResponse("lstpu", tt.result)

			_, err := newTestProber(runner).Probe(context.Background())

			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.DeviceProbe), "got %v", err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Equal(t, "device probe", errors.GetCode(err).Stage())
		})
	}
}

func TestProbeMissingEnumeratorWrapsSentinel(t *testing.T) {
	runner := exec.NewMockRunner()
	runner.SetResponse("lstpu", exec.ErrorResult(errors.New(errors.NotFound, "missing")))

	_, err := newTestProber(runner).Probe(context.Background())

	var ctsErr *errors.Error
	require.ErrorAs(t, err, &ctsErr)
	assert.Equal(t, errors.ErrNoEnumerator, ctsErr.Cause)
}

func TestProbeNonZeroExitWithDeviceList(t *testing.T) {
	runner := exec.NewMockRunner()
	runner.SetResponse("lstpu", exec.FailureResult(1, "0  PCI  /dev/apex_0\n1  PCI  /dev/apex_1\n"))

	topo, err := newTestProber(runner).Probe(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, topo.Count)
	assert.Equal(t, InterfacePCIe, topo.Interface)
}

func TestProbeInterrupted(t *testing.T) {
	runner := exec.NewMockRunner()
	runner.SetHandler("lstpu", func(ctx context.Context, cmd exec.Command) *exec.Result {
		<-ctx.Done()
		r := exec.ErrorResult(errors.Wrap(errors.Cancelled, "command interrupted", ctx.Err()))
		r.Interrupted = true
		return r
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestProber(runner).Probe(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
}

func TestProberDefaults(t *testing.T) {
	p := NewProber(exec.NewMockRunner())

	assert.Equal(t, "./lstpu", p.Path())
	assert.Equal(t, "/usr/bin/lstpu", NewProber(nil, WithEnumeratorPath("/usr/bin/lstpu")).Path())
}

func TestStaticProber(t *testing.T) {
	want := Topology{Count: 2, Interface: InterfacePCIe}

	got, err := StaticProber{Topology: want}.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = StaticProber{Err: fmt.Errorf("boom")}.Probe(context.Background())
	assert.EqualError(t, err, "boom")
}
