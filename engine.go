package morph

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/imdario/mergo"
	"golang.org/x/sync/singleflight"
)

// Engine owns a mapper registry, an accessor cache, and the converters and
// specs that configure them. Engines are safe for concurrent use.
type Engine struct {
	cache *accessorCache

	// Registry of mappings keyed by type pair.
	mu       sync.RWMutex
	mappings map[pairKey]*Mapping
	flight   singleflight.Group
	typed    sync.Map // pairKey -> *Mapper[S, T]

	specMu sync.Mutex
	specs  map[reflect.Type]*TypeSpec

	convMu         sync.RWMutex
	converters     map[string]Converter
	collections    map[string]CollectionFunc
	typeConverters []TypeConverter

	policy NullPolicy
	groups []Group
}

// Option configures an Engine.
type Option func(*settings)

type settings struct {
	cfg            Config
	key            []byte
	converters     map[string]Converter
	collections    map[string]CollectionFunc
	typeConverters []TypeConverter
}

// WithConfig applies cfg. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(s *settings) {
		s.cfg = cfg
	}
}

// WithCacheSize bounds the number of type entries kept strongly reachable.
func WithCacheSize(n int) Option {
	return func(s *settings) {
		s.cfg.CacheSize = n
	}
}

// WithDefaultPolicy sets the null/empty policy used when neither the field
// nor the call sets one.
func WithDefaultPolicy(p NullPolicy) Option {
	return func(s *settings) {
		s.cfg.Policy = p
	}
}

// WithGroups activates groups on every call.
func WithGroups(groups ...Group) Option {
	return func(s *settings) {
		s.cfg.Groups = append(s.cfg.Groups, groups...)
	}
}

// WithConverter registers a named converter.
func WithConverter(name string, c Converter) Option {
	return func(s *settings) {
		s.converters[name] = c
	}
}

// WithCollection registers a named collection factory.
func WithCollection(name string, fn CollectionFunc) Option {
	return func(s *settings) {
		s.collections[name] = fn
	}
}

// WithTypeConverter registers a TypeConverter.
func WithTypeConverter(tc TypeConverter) Option {
	return func(s *settings) {
		s.typeConverters = append(s.typeConverters, tc)
	}
}

// WithKey enables the encrypt.aes and decrypt.aes converters.
// Key must be 16, 24, or 32 bytes.
func WithKey(key []byte) Option {
	return func(s *settings) {
		s.key = key
	}
}

// Built-in collection factory names.
const (
	CollectionList   = "list"
	CollectionLinked = "linked"
)

// New creates an engine.
func New(opts ...Option) (*Engine, error) {
	s := &settings{
		converters:  make(map[string]Converter),
		collections: make(map[string]CollectionFunc),
	}
	for _, opt := range opts {
		opt(s)
	}

	cfg := s.cfg
	if err := mergo.Merge(&cfg, DefaultConfig()); err != nil {
		return nil, err
	}

	converters, err := builtinConverters(s.key)
	if err != nil {
		return nil, err
	}
	for name, c := range s.converters {
		converters[name] = c
	}

	collections := map[string]CollectionFunc{
		CollectionList:   func() Collection { return &List[any]{} },
		CollectionLinked: func() Collection { return &LinkedList[any]{} },
	}
	for name, fn := range s.collections {
		collections[name] = fn
	}

	e := &Engine{
		mappings:       make(map[pairKey]*Mapping),
		specs:          make(map[reflect.Type]*TypeSpec),
		converters:     converters,
		collections:    collections,
		typeConverters: s.typeConverters,
		policy:         cfg.Policy,
		groups:         cfg.Groups,
	}
	if e.cache, err = newAccessorCache(e, cfg.CacheSize); err != nil {
		return nil, err
	}
	return e, nil
}

// Must panics if err is non-nil. It is intended for package-level engines.
func Must(e *Engine, err error) *Engine {
	if err != nil {
		panic(err)
	}
	return e
}

// invalidate drops cached accessors for t.
func (e *Engine) invalidate(t reflect.Type) {
	e.cache.invalidate(t)
}

// Reset drops every mapping and cached accessor. Converters and specs stay.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.mappings = make(map[pairKey]*Mapping)
	e.mu.Unlock()

	e.typed.Range(func(k, _ any) bool {
		e.typed.Delete(k)
		return true
	})
	e.cache.purge()
}

var defaultEngine atomic.Pointer[Engine]

// Default returns the package-level engine, creating it on first use.
func Default() *Engine {
	if e := defaultEngine.Load(); e != nil {
		return e
	}
	defaultEngine.CompareAndSwap(nil, Must(New()))
	return defaultEngine.Load()
}

// Reset replaces the package-level engine.
// This is primarily useful for test isolation.
func Reset() {
	defaultEngine.Store(Must(New()))
}

// Use returns the cached mapper for S to T on the default engine.
func Use[S, T any]() (*Mapper[S, T], error) {
	return For[S, T](Default())
}
