package socket

import (
	"errors"
	"testing"

	"snmpcarrier/mocks"

	"golang.org/x/sys/unix"
)

func TestTuneBuffers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		size        int
		failOp      string
		wantOK      bool
		wantChanges int
		wantRcv     int
		wantSnd     int
	}{
		{
			name:        "raises small buffers",
			size:        DefaultBufferSize,
			wantOK:      true,
			wantChanges: 2,
			wantRcv:     DefaultBufferSize,
			wantSnd:     DefaultBufferSize,
		},
		{
			name:        "keeps large buffers",
			size:        mocks.MockDefaultBufferSize / 2,
			wantOK:      true,
			wantChanges: 0,
			wantRcv:     mocks.MockDefaultBufferSize,
			wantSnd:     mocks.MockDefaultBufferSize,
		},
		{
			name:        "getsockopt fails",
			size:        DefaultBufferSize,
			failOp:      mocks.OpGetsockopt,
			wantOK:      false,
			wantChanges: 0,
			wantRcv:     mocks.MockDefaultBufferSize,
			wantSnd:     mocks.MockDefaultBufferSize,
		},
		{
			name:        "setsockopt fails",
			size:        DefaultBufferSize,
			failOp:      mocks.OpSetsockopt,
			wantOK:      false,
			wantChanges: 0,
			wantRcv:     mocks.MockDefaultBufferSize,
			wantSnd:     mocks.MockDefaultBufferSize,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ops := mocks.NewMockSocketOps()
			fd := ops.AddSocket(unix.AF_INET, unix.SOCK_DGRAM)
			if tc.failOp != "" {
				ops.Fail(tc.failOp, unix.ENOPROTOOPT)
			}

			res := TuneBuffers(ops, fd, tc.size)
			if res.OK() != tc.wantOK {
				t.Errorf("OK() = %t; want %t (err: %v)", res.OK(), tc.wantOK, res.Err)
			}
			if !tc.wantOK && !errors.Is(res.Err, unix.ENOPROTOOPT) {
				t.Errorf("Err = %v; want wrapped ENOPROTOOPT", res.Err)
			}
			if len(res.Changes) != tc.wantChanges {
				t.Errorf("got %d changes; want %d", len(res.Changes), tc.wantChanges)
			}

			s, _ := ops.Get(fd)
			if s.Options[unix.SO_RCVBUF] != tc.wantRcv {
				t.Errorf("SO_RCVBUF = %d; want %d", s.Options[unix.SO_RCVBUF], tc.wantRcv)
			}
			if s.Options[unix.SO_SNDBUF] != tc.wantSnd {
				t.Errorf("SO_SNDBUF = %d; want %d", s.Options[unix.SO_SNDBUF], tc.wantSnd)
			}
		})
	}
}

func TestTuneBuffers_ReportsChanges(t *testing.T) {
	t.Parallel()

	ops := mocks.NewMockSocketOps()
	fd := ops.AddSocket(unix.AF_INET, unix.SOCK_DGRAM)

	res := TuneBuffers(ops, fd, DefaultBufferSize)
	want := []BufferChange{
		{Option: "SO_RCVBUF", From: mocks.MockDefaultBufferSize, To: DefaultBufferSize},
		{Option: "SO_SNDBUF", From: mocks.MockDefaultBufferSize, To: DefaultBufferSize},
	}
	if len(res.Changes) != len(want) {
		t.Fatalf("changes = %+v; want %+v", res.Changes, want)
	}
	for i := range want {
		if res.Changes[i] != want[i] {
			t.Errorf("change %d = %+v; want %+v", i, res.Changes[i], want[i])
		}
	}
}

func TestTuneBuffers_ClosedSocket(t *testing.T) {
	t.Parallel()

	ops := mocks.NewMockSocketOps()
	fd := ops.AddSocket(unix.AF_INET, unix.SOCK_DGRAM)
	_ = ops.Close(fd)

	res := TuneBuffers(ops, fd, DefaultBufferSize)
	if res.OK() {
		t.Fatal("OK() = true for a closed socket")
	}
	if !errors.Is(res.Err, unix.EBADF) {
		t.Errorf("Err = %v; want EBADF", res.Err)
	}
}
