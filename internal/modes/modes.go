package modes

import (
	"fmt"
	"go-teethagent/pkg/agenterrors"
	"go-teethagent/pkg/models"
	"sort"
	"strings"
	"sync"
)

// Namespace is the registry namespace agent modes are registered under.
const Namespace = "teeth_agent.modes"

// Mode executes a family of related commands. An agent binds to exactly one Mode for its
// whole lifetime.
type Mode interface {
	Name() string
	Execute(command string, params map[string]any) (models.CommandResult, error)
}

// Factory builds a Mode with no arguments.
type Factory func() Mode

// LoadError is returned when no mode is registered under a name or its factory fails.
type LoadError struct {
	Namespace string
	Name      string
	Reason    string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("unable to load mode %q from %s: %s", e.Name, e.Namespace, e.Reason)
}

type Registry struct {
	mu        sync.RWMutex
	factories map[string]map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]map[string]Factory{}}
}

// Register adds a factory under namespace and the lower-cased name, replacing any
// previous registration.
func (r *Registry) Register(namespace, name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ns, ok := r.factories[namespace]
	if !ok {
		ns = map[string]Factory{}
		r.factories[namespace] = ns
	}
	ns[strings.ToLower(name)] = f
}

// Names lists the registered names in a namespace, sorted.
func (r *Registry) Names(namespace string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories[namespace]))
	for name := range r.factories[namespace] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load instantiates the mode registered under namespace and name (case-insensitive).
func (r *Registry) Load(namespace, name string) (mode Mode, err error) {
	r.mu.RLock()
	f, ok := r.factories[namespace][strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, &LoadError{Namespace: namespace, Name: name, Reason: "not registered"}
	}

	defer func() {
		if rec := recover(); rec != nil {
			mode, err = nil, &LoadError{Namespace: namespace, Name: name, Reason: fmt.Sprint(rec)}
		}
	}()
	mode = f()
	if mode == nil {
		return nil, &LoadError{Namespace: namespace, Name: name, Reason: "factory returned no mode"}
	}
	return mode, nil
}

// Resolver loads modes from a fixed namespace of a Registry.
type Resolver struct {
	registry  *Registry
	namespace string
}

func NewResolver(registry *Registry, namespace string) *Resolver {
	return &Resolver{registry: registry, namespace: namespace}
}

func (r *Resolver) Resolve(name string) (Mode, error) {
	return r.registry.Load(r.namespace, name)
}

// CommandFunc handles one bare command of a mode.
type CommandFunc func(command string, params map[string]any) (models.CommandResult, error)

// Base dispatches commands through a name-indexed command map. Modes embed it and register
// their commands in their constructor.
type Base struct {
	name     string
	commands map[string]CommandFunc
}

func NewBase(name string) *Base {
	return &Base{name: name, commands: map[string]CommandFunc{}}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) AddCommand(name string, fn CommandFunc) {
	b.commands[name] = fn
}

func (b *Base) Execute(command string, params map[string]any) (models.CommandResult, error) {
	fn, ok := b.commands[command]
	if !ok {
		return nil, agenterrors.NewInvalidContent(fmt.Sprintf("unknown command: %s", command))
	}
	return fn(command, params)
}
