package wasmtarget

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/heapscope/errors"
)

const (
	// GuestModuleName is the instance name given to loaded guests.
	GuestModuleName = "guest"

	wasiModuleName = "wasi_snapshot_preview1"
	initFunction   = "_initialize"
)

// Session owns a wazero runtime with one instantiated guest whose own
// exports answer the debug queries.
type Session struct {
	runtime wazero.Runtime
	guest   api.Module
	target  *Target
}

// Load compiles and instantiates a guest module. WASI preview1 is provided
// when the guest imports it. A reactor's _initialize export runs before
// the session is returned.
func Load(ctx context.Context, wasmBytes []byte, cfg *Config) (*Session, error) {
	log := Logger()
	if len(wasmBytes) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty module")
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Load("compile guest", err)
	}

	if importsWASI(compiled) {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			_ = rt.Close(ctx)
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInstantiation, err, "instantiate WASI")
		}
		log.Debug("WASI preview1 instantiated")
	}

	if cfg != nil && cfg.HostModules != nil {
		if err := cfg.HostModules(ctx, rt); err != nil {
			_ = rt.Close(ctx)
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInstantiation, err, "register host modules")
		}
	}

	modCfg := wazero.NewModuleConfig().
		WithName(GuestModuleName).
		WithStartFunctions(initFunction)
	if cfg != nil {
		if cfg.Stdout != nil {
			modCfg = modCfg.WithStdout(cfg.Stdout)
		}
		if cfg.Stderr != nil {
			modCfg = modCfg.WithStderr(cfg.Stderr)
		}
	}

	guest, err := rt.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Instantiation(err)
	}

	target, err := New(guest, guest.Memory(), cfg)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	log.Debug("guest loaded",
		zap.Int("bytes", len(wasmBytes)),
		zap.Uint32("memory", guest.Memory().Size()))

	return &Session{runtime: rt, guest: guest, target: target}, nil
}

func importsWASI(compiled wazero.CompiledModule) bool {
	for _, def := range compiled.ImportedFunctions() {
		if mod, _, ok := def.Import(); ok && mod == wasiModuleName {
			return true
		}
	}
	return false
}

// Target returns the target backed by the guest.
func (s *Session) Target() *Target {
	return s.target
}

// Call invokes a guest export, typically a setup function that builds
// objects and returns their address.
func (s *Session) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := s.guest.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name)
	}
	res, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindEvaluation, err, "call "+name)
	}
	return res, nil
}

// Close releases the runtime and every module in it.
func (s *Session) Close(ctx context.Context) error {
	if err := s.runtime.Close(ctx); err != nil {
		Logger().Warn("close runtime", zap.Error(err))
		return err
	}
	return nil
}
