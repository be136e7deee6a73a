package profile

import "sync"

// Registry resolves a language tag to its Profile. New variants can be
// registered without changing any caller.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]Profile)}
}

// Register adds or replaces the profile for a language tag.
func (r *Registry) Register(p Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID()] = p
}

// Resolve returns the profile for a language tag, or
// ErrUnsupportedLanguage if none is registered.
func (r *Registry) Resolve(language string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[language]
	if !ok {
		return nil, &ErrUnsupportedLanguage{Language: language}
	}
	return p, nil
}

// Default builds the registry covering the three required profiles:
// native (C++), bytecode-vm (Java), interpreted (Python).
func Default() *Registry {
	r := NewRegistry()
	r.Register(Native{
		Name:       "cpp",
		SourceExt:  ".cpp",
		CompileTpl: "g++ -O2 -std=c++17 {extraFlags} {src} -o {bin}",
	})
	r.Register(Bytecode{
		Name:       "java",
		ClassName:  "Main",
		SourceExt:  ".java",
		CompileTpl: "javac {extraFlags} {src}",
		VM:         "java",
		StackMB:    64,
		InitHeapMB: 16,
	})
	r.Register(Interpreted{
		Name:        "python",
		SourceExt:   ".py",
		Interpreter: "python3",
		OverheadMB:  50,
	})
	return r
}
