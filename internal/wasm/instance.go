package wasm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/mridang/dprint-go/internal/dprint"
)

// exportNames are the functions every schema version 4 plugin exports.
var exportNames = []string{ //nolint:gochecknoglobals // ABI table
	"get_shared_bytes_ptr",
	"clear_shared_bytes",
	"get_plugin_info",
	"get_license_text",
	"register_config",
	"release_config",
	"get_config_diagnostics",
	"get_resolved_config",
	"get_config_file_matching",
	"set_file_path",
	"set_override_config",
	"format",
	"get_formatted_text",
	"get_error_text",
}

// instance is one running copy of a plugin module. It is used by one
// goroutine at a time; concurrent and nested calls get other instances.
type instance struct {
	store     *wasmer.Store
	instance  *wasmer.Instance
	memory    *wasmer.Memory
	functions map[string]wasmer.NativeFunction

	// configuration ids registered with this instance
	registered map[uint32]bool
	// a trap leaves the instance in an unknown state
	trapped bool

	// set for the duration of a format call so host_format can reach back
	// into the scope
	ctx        context.Context //nolint:containedctx // scoped to one format call
	hostFormat dprint.HostFormatter
	hostResult []byte
	hostErr    error
}

func newInstance(engine *wasmer.Engine, compiled []byte) (*instance, error) {
	store := wasmer.NewStore(engine)
	module, err := wasmer.DeserializeModule(store, compiled)
	if err != nil {
		return nil, fmt.Errorf("error loading compiled module: %w", err)
	}

	inst := &instance{
		store:      store,
		functions:  map[string]wasmer.NativeFunction{},
		registered: map[uint32]bool{},
	}
	imports := wasmer.NewImportObject()
	imports.Register(dprint.HostImportModule, inst.hostImports(store))

	inst.instance, err = wasmer.NewInstance(module, imports)
	if err != nil {
		return nil, fmt.Errorf("error instantiating module: %w", err)
	}
	inst.memory, err = inst.instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, fmt.Errorf("module does not export its memory: %w", err)
	}
	for _, name := range exportNames {
		fn, err := inst.instance.Exports.GetFunction(name)
		if err != nil {
			return nil, fmt.Errorf("module is missing export %s: %w", name, err)
		}
		inst.functions[name] = fn
	}

	if initialize, err := inst.instance.Exports.GetFunction("_initialize"); err == nil {
		if _, err := initialize(); err != nil {
			return nil, fmt.Errorf("error running _initialize: %w", err)
		}
	}
	return inst, nil
}

func (i *instance) healthy() bool {
	return !i.trapped
}

func (i *instance) call(name string, args ...any) (int32, error) {
	fn, ok := i.functions[name]
	if !ok {
		return 0, fmt.Errorf("unknown export %s", name)
	}
	result, err := fn(args...)
	if err != nil {
		i.trapped = true
		return 0, fmt.Errorf("error calling %s: %w", name, err)
	}
	if result == nil {
		return 0, nil
	}
	n, ok := result.(int32)
	if !ok {
		return 0, fmt.Errorf("unexpected result %T from %s", result, name)
	}
	return n, nil
}

// send copies b into the plugin's shared buffer.
func (i *instance) send(b []byte) error {
	ptr, err := i.call("clear_shared_bytes", int32(len(b))) //nolint:gosec // plugin memory is 32 bit
	if err != nil {
		return err
	}
	return i.write(uint32(ptr), b) //nolint:gosec // pointers are unsigned
}

// receive calls name, which leaves its result in the shared buffer and
// returns the length, and reads the result back.
func (i *instance) receive(name string, args ...any) ([]byte, error) {
	size, err := i.call(name, args...)
	if err != nil {
		return nil, err
	}
	return i.receiveSize(uint32(size)) //nolint:gosec // sizes are unsigned
}

func (i *instance) receiveSize(size uint32) ([]byte, error) {
	ptr, err := i.call("get_shared_bytes_ptr")
	if err != nil {
		return nil, err
	}
	return i.read(uint32(ptr), size) //nolint:gosec // pointers are unsigned
}

func (i *instance) read(ptr, size uint32) ([]byte, error) {
	data := i.memory.Data()
	end := uint64(ptr) + uint64(size)
	if end > uint64(len(data)) {
		return nil, fmt.Errorf("read of %d bytes at %d is outside plugin memory", size, ptr)
	}
	out := make([]byte, size)
	copy(out, data[ptr:end])
	return out, nil
}

func (i *instance) write(ptr uint32, b []byte) error {
	data := i.memory.Data()
	end := uint64(ptr) + uint64(len(b))
	if end > uint64(len(data)) {
		return fmt.Errorf("write of %d bytes at %d is outside plugin memory", len(b), ptr)
	}
	copy(data[ptr:end], b)
	return nil
}

func (i *instance) receiveJSON(name string, out any, args ...any) error {
	b, err := i.receive(name, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("error decoding %s: %w", name, err)
	}
	return nil
}

type registeredConfig struct {
	Plugin dprint.ConfigKeyMap        `json:"plugin"`
	Global dprint.GlobalConfiguration `json:"global"`
}

// ensureConfig registers config with this instance the first time it is
// used here.
func (i *instance) ensureConfig(config *dprint.FormatConfig) error {
	if i.registered[config.ID] {
		return nil
	}
	raw := config.Raw
	if raw == nil {
		raw = dprint.ConfigKeyMap{}
	}
	b, err := json.Marshal(registeredConfig{Plugin: raw, Global: config.Global})
	if err != nil {
		return err
	}
	if err := i.send(b); err != nil {
		return err
	}
	if _, err := i.call("register_config", int32(config.ID)); err != nil { //nolint:gosec // ids wrap like the plugin's u32
		return err
	}
	i.registered[config.ID] = true
	return nil
}

func (i *instance) format(ctx context.Context, filePath, text string, override dprint.ConfigKeyMap, config *dprint.FormatConfig, host dprint.HostFormatter) (dprint.FormatResult, error) {
	if err := i.ensureConfig(config); err != nil {
		return dprint.FormatResult{}, err
	}
	if err := i.send([]byte(filePath)); err != nil {
		return dprint.FormatResult{}, err
	}
	if _, err := i.call("set_file_path"); err != nil {
		return dprint.FormatResult{}, err
	}
	if override == nil {
		override = dprint.ConfigKeyMap{}
	}
	overrideJSON, err := json.Marshal(override)
	if err != nil {
		return dprint.FormatResult{}, err
	}
	if err := i.send(overrideJSON); err != nil {
		return dprint.FormatResult{}, err
	}
	if _, err := i.call("set_override_config"); err != nil {
		return dprint.FormatResult{}, err
	}
	if err := i.send([]byte(text)); err != nil {
		return dprint.FormatResult{}, err
	}

	i.ctx, i.hostFormat, i.hostErr = ctx, host, nil
	defer func() { i.ctx, i.hostFormat, i.hostResult = nil, nil, nil }()

	code, err := i.call("format", int32(config.ID)) //nolint:gosec // ids wrap like the plugin's u32
	if err != nil {
		return dprint.FormatResult{}, err
	}
	switch code {
	case dprint.FormatResultNoChange:
		return dprint.Unchanged(), nil
	case dprint.FormatResultChanged:
		b, err := i.receive("get_formatted_text")
		if err != nil {
			return dprint.FormatResult{}, err
		}
		return dprint.Changed(string(b)), nil
	case dprint.FormatResultError:
		// an embedded failure is the more useful error to surface
		if i.hostErr != nil {
			return dprint.FormatResult{}, i.hostErr
		}
		b, err := i.receive("get_error_text")
		if err != nil {
			return dprint.FormatResult{}, err
		}
		return dprint.FormatResult{}, errors.New(string(b))
	default:
		return dprint.FormatResult{}, fmt.Errorf("unknown format result %d", code)
	}
}

// hostImports builds the functions the plugin imports from the host.
func (i *instance) hostImports(store *wasmer.Store) map[string]wasmer.IntoExtern {
	newFunc := func(params, results []wasmer.ValueKind, f func([]wasmer.Value) ([]wasmer.Value, error)) *wasmer.Function {
		return wasmer.NewFunction(
			store,
			wasmer.NewFunctionType(
				wasmer.NewValueTypes(params...),
				wasmer.NewValueTypes(results...),
			),
			f,
		)
	}
	i32 := func(n int) []wasmer.Value { return []wasmer.Value{wasmer.NewI32(int32(n))} } //nolint:gosec // small values

	return map[string]wasmer.IntoExtern{
		"host_write_buffer": newFunc(
			[]wasmer.ValueKind{wasmer.I32}, nil,
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				return nil, i.write(uint32(args[0].I32()), i.hostResult) //nolint:gosec // pointers are unsigned
			},
		),
		"host_format": newFunc(
			[]wasmer.ValueKind{
				wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32,
				wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32,
			},
			[]wasmer.ValueKind{wasmer.I32},
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				return i32(i.handleHostFormat(args)), nil
			},
		),
		"host_get_formatted_text": newFunc(
			nil, []wasmer.ValueKind{wasmer.I32},
			func([]wasmer.Value) ([]wasmer.Value, error) {
				return i32(len(i.hostResult)), nil
			},
		),
		"host_get_error_text": newFunc(
			nil, []wasmer.ValueKind{wasmer.I32},
			func([]wasmer.Value) ([]wasmer.Value, error) {
				return i32(len(i.hostResult)), nil
			},
		),
		"host_has_cancelled": newFunc(
			nil, []wasmer.ValueKind{wasmer.I32},
			func([]wasmer.Value) ([]wasmer.Value, error) {
				if i.ctx != nil && i.ctx.Err() != nil {
					return i32(1), nil
				}
				return i32(0), nil
			},
		),
	}
}

// handleHostFormat serves a plugin's request to format embedded text. The
// result or error text is kept until the plugin asks for it.
func (i *instance) handleHostFormat(args []wasmer.Value) int {
	u := func(n int) uint32 { return uint32(args[n].I32()) } //nolint:gosec // pointers are unsigned
	fail := func(err error) int {
		i.hostErr = err
		i.hostResult = []byte(err.Error())
		return dprint.FormatResultError
	}

	if i.hostFormat == nil || i.ctx == nil {
		return fail(errors.New("host formatting is only available while formatting"))
	}
	filePath, err := i.read(u(0), u(1))
	if err != nil {
		return fail(err)
	}
	overrideJSON, err := i.read(u(4), u(5))
	if err != nil {
		return fail(err)
	}
	text, err := i.read(u(6), u(7))
	if err != nil {
		return fail(err)
	}

	request := dprint.HostFormatRequest{FilePath: string(filePath), FileText: string(text)}
	if start, end := int(u(2)), int(u(3)); start != 0 || end != len(text) {
		request.Range = &dprint.FormatRange{Start: start, End: end}
	}
	if len(overrideJSON) > 0 {
		if err := json.Unmarshal(overrideJSON, &request.OverrideConfig); err != nil {
			return fail(fmt.Errorf("error decoding override config: %w", err))
		}
	}

	result, err := i.hostFormat.Format(i.ctx, request)
	if err != nil {
		return fail(err)
	}
	if !result.Changed {
		i.hostResult = nil
		return dprint.FormatResultNoChange
	}
	i.hostResult = []byte(result.Text)
	return dprint.FormatResultChanged
}
