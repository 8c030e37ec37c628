// Package coromodule is the narrow contract corort's surrounding
// application code uses to load externally-compiled modules at runtime --
// the "dynamic module loader" spec.md §1 lists among the excluded
// external collaborators corort itself never implements.
//
// Modules are ordinary Go plugins (built with `go build -buildmode=plugin`)
// exporting a constructor satisfying [SymbolName]'s contract.
package coromodule

import (
	"context"
	"fmt"
	"plugin"

	"github.com/joeycumines/go-corort"
)

// Module is the lifecycle every dynamically-loaded corort module
// implements: created once, handed its process environment, started
// against a scheduler, and destroyed on shutdown.
type Module interface {
	// Create performs one-time setup (opening files, connecting to
	// external services) before the module is ever started.
	Create(ctx context.Context) error
	// Destroy releases anything Create acquired. It runs during shutdown
	// regardless of how Start's task completed.
	Destroy(ctx context.Context) error
	// InstallEnvironment hands the module its configuration as a flat
	// key/value map, conventionally derived from os.Environ().
	InstallEnvironment(env map[string]string) error
	// Start returns the task the module wants scheduled; the caller is
	// responsible for submitting it to sched.
	Start(ctx context.Context, sched *corort.Scheduler) corort.Task[int]
}

// SymbolName is the exported plugin symbol [Open] looks up. It must be a
// func() (Module, error): a constructor, so each Open call gets a fresh
// Module instance rather than sharing mutable state across loads.
const SymbolName = "CorortModule"

// Open opens the Go plugin at path and resolves its exported Module
// constructor.
func Open(path string) (Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("coromodule: opening %s: %w", path, err)
	}
	sym, err := p.Lookup(SymbolName)
	if err != nil {
		return nil, fmt.Errorf("coromodule: %s: missing symbol %s: %w", path, SymbolName, err)
	}
	ctor, ok := sym.(func() (Module, error))
	if !ok {
		return nil, fmt.Errorf("coromodule: %s: symbol %s has unexpected type %T", path, SymbolName, sym)
	}
	mod, err := ctor()
	if err != nil {
		return nil, fmt.Errorf("coromodule: %s: constructor failed: %w", path, err)
	}
	return mod, nil
}
