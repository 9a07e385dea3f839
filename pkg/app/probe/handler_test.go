package probe

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/deploymenttheory/vfio-probe/internal/vfio"
	"github.com/deploymenttheory/vfio-probe/pkg/app"
)

func testContext() *app.Context {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return app.NewContextWithLogger(logger, false, false)
}

func focusedRequest(k vfio.Kernel) *Request {
	return &Request{
		Target:        app.DeviceTarget{GroupID: 26, Address: "0000:03:00.0"},
		ContainerPath: vfio.DefaultContainerPath,
		GroupDir:      vfio.DefaultGroupDir,
		DumpBytes:     4,
		Kernel:        k,
	}
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*stubKernel, *Request)
		wantCode string
		wantKind string
		validate func(*testing.T, *Response)
	}{
		{
			name: "focused maps the primary region",
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, "focused", resp.Mode)
				assert.Equal(t, "VIABLE|CONTAINER_SET", resp.GroupFlags)
				assert.Equal(t, "VFIO_TYPE1_IOMMU", resp.IOMMU)
				require.NotNil(t, resp.Device)
				assert.Equal(t, "RESET|PCI", resp.Device.Flags)
				require.Len(t, resp.Regions, 1)
				assert.True(t, resp.Regions[0].Mapped)
				assert.Equal(t, "a0 a1 a2 a3", resp.Regions[0].Head)
				assert.Equal(t, "Unmapped", resp.Trace[len(resp.Trace)-1])
				assert.Nil(t, resp.Failure)
			},
		},
		{
			name: "enumerate reports every region",
			setup: func(_ *stubKernel, r *Request) {
				r.Enumerate = true
			},
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, "enumerate", resp.Mode)
				require.Len(t, resp.Regions, 2)
				assert.True(t, resp.Regions[0].Mapped)
				assert.False(t, resp.Regions[1].Mapped)
				assert.Equal(t, "READ|WRITE", resp.Regions[1].Flags)
			},
		},
		{
			name: "enumerate skips a failing region",
			setup: func(k *stubKernel, r *Request) {
				r.Enumerate = true
				k.regionErrs[0] = unix.EIO
			},
			validate: func(t *testing.T, resp *Response) {
				require.Len(t, resp.Regions, 2)
				assert.NotEmpty(t, resp.Regions[0].Error)
				assert.Empty(t, resp.Regions[1].Error)
			},
		},
		{
			name: "non-viable group",
			setup: func(k *stubKernel, _ *Request) {
				k.viable = false
			},
			wantCode: app.ErrCodeGroupAccess,
			wantKind: "GroupNotViable",
			validate: func(t *testing.T, resp *Response) {
				assert.Empty(t, resp.Regions)
				assert.Nil(t, resp.Device)
				assert.Equal(t, "Failed", resp.Trace[len(resp.Trace)-1])
			},
		},
		{
			name: "missing group node",
			setup: func(_ *stubKernel, r *Request) {
				r.Target.GroupID = 27
			},
			wantCode: app.ErrCodeGroupAccess,
			wantKind: "GroupNotFound",
		},
		{
			name: "unknown device",
			setup: func(_ *stubKernel, r *Request) {
				r.Target.Address = "0000:04:00.0"
			},
			wantCode: app.ErrCodeDeviceAccess,
			wantKind: "DeviceNotFound",
			validate: func(t *testing.T, resp *Response) {
				assert.Equal(t, "VFIO_TYPE1_IOMMU", resp.IOMMU)
			},
		},
		{
			name: "primary region query fails",
			setup: func(k *stubKernel, _ *Request) {
				k.regionErrs[0] = unix.EIO
			},
			wantCode: app.ErrCodeDeviceAccess,
			wantKind: "RegionQueryFailed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newStubKernel()
			req := focusedRequest(k)
			if tt.setup != nil {
				tt.setup(k, req)
			}

			resp, err := Handle(testContext(), req)
			require.NotNil(t, resp)
			if tt.wantCode != "" {
				require.Error(t, err)
				var ce *app.CommonError
				require.True(t, errors.As(err, &ce))
				assert.Equal(t, tt.wantCode, ce.Code)
				require.NotNil(t, resp.Failure)
				assert.Equal(t, tt.wantKind, resp.Failure.Kind)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, k.opened, k.closed, "every descriptor is closed")
			if tt.validate != nil {
				tt.validate(t, resp)
			}
		})
	}
}

func TestHandleRejectsMalformedAddress(t *testing.T) {
	k := newStubKernel()
	req := focusedRequest(k)
	req.Target.Address = "0000:03:00"

	resp, err := Handle(testContext(), req)
	assert.Nil(t, resp)
	var ce *app.CommonError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, app.ErrCodeInvalidInput, ce.Code)
	assert.Zero(t, k.opened)
}

func TestHandleNotViableMessage(t *testing.T) {
	k := newStubKernel()
	k.viable = false

	_, err := Handle(testContext(), focusedRequest(k))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "group not viable")
	assert.True(t, vfio.IsKind(err, vfio.GroupNotViable))
}

func TestHandlePreflightWithoutSysfs(t *testing.T) {
	req := focusedRequest(newStubKernel())
	req.Preflight = true
	req.SysfsMount = filepath.Join(t.TempDir(), "absent")

	resp, err := Handle(testContext(), req)
	require.NoError(t, err, "preflight problems never fail the run")
	assert.Nil(t, resp.Sysfs)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "preflight skipped")
}

func TestHandleRunID(t *testing.T) {
	ctx := testContext()
	resp, err := Handle(ctx, focusedRequest(newStubKernel()))
	require.NoError(t, err)
	assert.Equal(t, ctx.RunID, resp.RunID)
	assert.Len(t, resp.RunID, 36)
}
