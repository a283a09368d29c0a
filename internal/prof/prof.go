// Package prof pushes continuous profiles to Pyroscope.
package prof

import (
	"context"
	"runtime"

	"github.com/grafana/pyroscope-go"

	"github.com/sanctuaryweb/site/internal/log"
	"github.com/sanctuaryweb/site/internal/xerrors"
)

type Options struct {
	Enabled       bool
	AppName       string
	ServerAddress string
	TenantID      string
	Tags          map[string]string
	// MutexFraction and BlockRate turn on the runtime's mutex and block
	// profiles when positive.
	MutexFraction int
	BlockRate     int
	// OnActive reports whether profiling ended up running.
	OnActive func(bool)
}

func profileTypes(withContention bool) []pyroscope.ProfileType {
	types := []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocObjects,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileInuseObjects,
		pyroscope.ProfileInuseSpace,
		pyroscope.ProfileGoroutines,
	}
	if withContention {
		types = append(types,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileMutexDuration,
			pyroscope.ProfileBlockCount,
			pyroscope.ProfileBlockDuration,
		)
	}
	return types
}

// Start begins profiling and returns its stop function, which is never nil.
func Start(ctx context.Context, opts Options) (func(), error) {
	L := log.FromContext(ctx)
	report := func(active bool) {
		if opts.OnActive != nil {
			opts.OnActive(active)
		}
	}

	if !opts.Enabled {
		L.Info(ctx, "pyroscope disabled")
		report(false)
		return func() {}, nil
	}
	if opts.ServerAddress == "" {
		report(false)
		return func() {}, xerrors.New("pyroscope: server address is required")
	}

	if opts.MutexFraction > 0 {
		runtime.SetMutexProfileFraction(opts.MutexFraction)
	}
	if opts.BlockRate > 0 {
		runtime.SetBlockProfileRate(opts.BlockRate)
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: opts.AppName,
		ServerAddress:   opts.ServerAddress,
		TenantID:        opts.TenantID,
		Tags:            opts.Tags,
		ProfileTypes:    profileTypes(opts.MutexFraction > 0 || opts.BlockRate > 0),
	})
	if err != nil {
		report(false)
		return func() {}, xerrors.Wrapf(err, "start pyroscope (server %s)", opts.ServerAddress)
	}

	L.Info(ctx, "pyroscope started", "server_address", opts.ServerAddress, "app_name", opts.AppName)
	report(true)
	return func() {
		profiler.Stop()
		report(false)
		L.Info(context.Background(), "pyroscope stopped")
	}, nil
}
