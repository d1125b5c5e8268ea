// Package mock holds component fixtures shared by the kernel tests.
package mock

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/centraunit/dikernel"
)

type requestIDKey struct{}

// WithRequestID stores a request id read by MockDB's constructor.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// Core interfaces
type Database interface {
	Connect() error
	IsConnected() bool
}

type Cache interface {
	Get(key string) any
	DB() Database
}

// MockDB connects on Initialize and disconnects on Dispose.
type MockDB struct {
	RequestID   string
	isConnected bool
	disposed    atomic.Int32
}

func NewMockDB(ctx context.Context) *MockDB {
	db := &MockDB{}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		db.RequestID = id
	}
	return db
}

func (m *MockDB) Initialize() error {
	m.isConnected = true
	return nil
}

func (m *MockDB) Connect() error {
	return nil
}

func (m *MockDB) IsConnected() bool {
	return m.isConnected
}

func (m *MockDB) Dispose() error {
	m.isConnected = false
	m.disposed.Add(1)
	return nil
}

// Disposals returns how many times Dispose ran.
func (m *MockDB) Disposals() int {
	return int(m.disposed.Load())
}

type MockCache struct {
	db Database
}

func NewMockCache(db Database) *MockCache {
	return &MockCache{db: db}
}

func (m *MockCache) Get(string) any { return nil }
func (m *MockCache) DB() Database   { return m.db }

// FailingDB fails to initialize when ShouldFail is set.
type FailingDB struct {
	MockDB
	ShouldFail bool
}

func (f *FailingDB) Initialize() error {
	if f.ShouldFail {
		return fmt.Errorf("simulated boot failure")
	}
	return f.MockDB.Initialize()
}

// Circular dependency types
type CircularService1 interface {
	GetService2() CircularService2
}

type CircularService2 interface {
	GetService1() CircularService1
}

type CircularImpl1 struct{ svc2 CircularService2 }

func NewCircularImpl1(s CircularService2) *CircularImpl1 { return &CircularImpl1{svc2: s} }

func (i *CircularImpl1) GetService2() CircularService2 { return i.svc2 }

type CircularImpl2 struct{ svc1 CircularService1 }

func NewCircularImpl2(s CircularService1) *CircularImpl2 { return &CircularImpl2{svc1: s} }

func (i *CircularImpl2) GetService1() CircularService1 { return i.svc1 }

// Deep dependency chain
type DeepService3 interface {
	GetValue() string
}

type DeepService2 interface {
	GetService3() DeepService3
}

type DeepService1 interface {
	GetService2() DeepService2
}

type DeepImpl3 struct{ Value string }

func (d *DeepImpl3) GetValue() string { return d.Value }

type DeepImpl2 struct{ svc3 DeepService3 }

func NewDeepImpl2(s DeepService3) *DeepImpl2 { return &DeepImpl2{svc3: s} }

func (d *DeepImpl2) GetService3() DeepService3 { return d.svc3 }

type DeepImpl1 struct{ svc2 DeepService2 }

func NewDeepImpl1(s DeepService2) *DeepImpl1 { return &DeepImpl1{svc2: s} }

func (d *DeepImpl1) GetService2() DeepService2 { return d.svc2 }

type ComplexServiceInterface interface {
	GetDB() Database
	GetCache() Cache
}

type ComplexService struct {
	DB    Database
	Cache Cache
}

func NewComplexService(db Database, cache Cache) *ComplexService {
	return &ComplexService{DB: db, Cache: cache}
}

func (c *ComplexService) GetDB() Database { return c.DB }
func (c *ComplexService) GetCache() Cache { return c.Cache }

// Greeter is the intercepted service used by the proxy tests.
type Greeter interface {
	Greet(name string) string
}

type EnglishGreeter struct{}

func NewEnglishGreeter() *EnglishGreeter { return &EnglishGreeter{} }

func (*EnglishGreeter) Greet(name string) string { return "Hello, " + name }

// GreeterProxy routes Greet through its interceptors.
type GreeterProxy struct {
	Target       Greeter
	Interceptors []dikernel.Interceptor
}

func NewGreeterProxy(target Greeter, interceptors []dikernel.Interceptor) Greeter {
	return &GreeterProxy{Target: target, Interceptors: interceptors}
}

func (p *GreeterProxy) Greet(name string) string {
	inv := dikernel.NewInvocation(p.Target, "Greet", []any{name}, p.Interceptors, func(inv *dikernel.Invocation) {
		inv.ReturnValues = []any{p.Target.Greet(inv.Arguments[0].(string))}
	})
	inv.Proceed()
	return inv.ReturnValues[0].(string)
}

func (p *GreeterProxy) ProxyTarget() any { return p.Target }

// RecordingInterceptor records the methods it sees and the component it
// was created for.
type RecordingInterceptor struct {
	Prefix string

	mu      sync.Mutex
	calls   []string
	model   *dikernel.ComponentModel
	release atomic.Int32
}

func NewRecordingInterceptor() *RecordingInterceptor {
	return &RecordingInterceptor{Prefix: "[rec] "}
}

func (r *RecordingInterceptor) Intercept(inv *dikernel.Invocation) {
	r.mu.Lock()
	r.calls = append(r.calls, inv.Method)
	r.mu.Unlock()
	inv.Proceed()
	if s, ok := inv.ReturnValues[0].(string); ok {
		inv.ReturnValues[0] = r.Prefix + s
	}
}

func (r *RecordingInterceptor) SetInterceptedComponentModel(model *dikernel.ComponentModel) {
	r.mu.Lock()
	r.model = model
	r.mu.Unlock()
}

func (r *RecordingInterceptor) Dispose() error {
	r.release.Add(1)
	return nil
}

func (r *RecordingInterceptor) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *RecordingInterceptor) InterceptedModel() *dikernel.ComponentModel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.model
}

func (r *RecordingInterceptor) Disposals() int {
	return int(r.release.Load())
}

// NotAnInterceptor is registered where an interceptor is expected.
type NotAnInterceptor struct{}

func NewNotAnInterceptor() *NotAnInterceptor { return &NotAnInterceptor{} }

// Connection is a pooled fixture counting recycles and disposals.
type Connection struct {
	ID       int64
	Recycled int
	Closed   bool
}

var connectionIDs atomic.Int64

func NewConnection() *Connection {
	return &Connection{ID: connectionIDs.Add(1)}
}

func (c *Connection) Recycle() {
	c.Recycled++
}

func (c *Connection) Dispose() error {
	c.Closed = true
	return nil
}

// InitRecorder records BeginInit/EndInit and Initialize calls in order.
type InitRecorder struct {
	Steps []string
}

func NewInitRecorder() *InitRecorder { return &InitRecorder{} }

func (r *InitRecorder) BeginInit()        { r.Steps = append(r.Steps, "begin") }
func (r *InitRecorder) EndInit()          { r.Steps = append(r.Steps, "end") }
func (r *InitRecorder) Initialize() error { r.Steps = append(r.Steps, "init"); return nil }

// Plugins for collection resolution.
type Plugin interface {
	Name() string
}

type AlphaPlugin struct{}

func (AlphaPlugin) Name() string { return "alpha" }

type BetaPlugin struct{}

func (*BetaPlugin) Name() string { return "beta" }

// PluginHost receives every registered plugin as a slice.
type PluginHost struct {
	Plugins []Plugin
}

func NewPluginHost(plugins []Plugin) *PluginHost {
	return &PluginHost{Plugins: plugins}
}

// PluginSeqHost receives every registered plugin as a read-only sequence.
type PluginSeqHost struct {
	Plugins iter.Seq[Plugin]
}

func NewPluginSeqHost(plugins iter.Seq[Plugin]) *PluginSeqHost {
	return &PluginSeqHost{Plugins: plugins}
}

// Repository is a generic service used by the framework bridge tests.
type Repository[T any] interface {
	Find(id int) (T, error)
}

type Order struct {
	ID int
}

type OrderRepository struct{}

func (OrderRepository) Find(id int) (Order, error) { return Order{ID: id}, nil }

// OrderService depends on a Repository supplied by an external provider.
type OrderService struct {
	Orders Repository[Order]
}

func NewOrderService(orders Repository[Order]) *OrderService {
	return &OrderService{Orders: orders}
}

// StartableService counts Start and Stop calls.
type StartableService struct {
	Started int
	Stopped int
}

func NewStartableService() *StartableService { return &StartableService{} }

func (s *StartableService) Start() error { s.Started++; return nil }
func (s *StartableService) Stop() error  { s.Stopped++; return nil }

// ErrConstructor is returned by FailingConstructor.
var ErrConstructor = errors.New("constructor failed")

func FailingConstructor() (*MockDB, error) {
	return nil, ErrConstructor
}

func PanickingConstructor() *MockDB {
	panic("boom")
}

// Settings is a value dependency supplied by parameters and arguments.
type Settings struct {
	DSN     string
	Retries int
}

func NewSettings(dsn string, retries int) *Settings {
	return &Settings{DSN: dsn, Retries: retries}
}
