package cli

import (
	"sync/atomic"
	"time"

	"github.com/centraunit/dikernel"
)

// The sample graph used by bench and diagnose: a singleton clock, pooled
// sessions and a transient, intercepted request handler.

type clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type session struct {
	clock   clock
	opened  time.Time
	serving int
}

func newSession(c clock) *session {
	return &session{clock: c, opened: c.Now()}
}

func (s *session) Recycle() {
	s.serving = 0
}

type requestHandler interface {
	Handle(payload string) int
}

type sessionHandler struct {
	session *session
}

func newSessionHandler(s *session) *sessionHandler {
	return &sessionHandler{session: s}
}

func (h *sessionHandler) Handle(payload string) int {
	h.session.serving++
	return len(payload)
}

type handlerProxy struct {
	target       requestHandler
	interceptors []dikernel.Interceptor
}

func (p *handlerProxy) Handle(payload string) int {
	inv := dikernel.NewInvocation(p.target, "Handle", []any{payload}, p.interceptors, func(inv *dikernel.Invocation) {
		inv.ReturnValues = []any{p.target.Handle(inv.Arguments[0].(string))}
	})
	inv.Proceed()
	return inv.ReturnValues[0].(int)
}

func (p *handlerProxy) ProxyTarget() any { return p.target }

type callCounter struct {
	calls atomic.Int64
}

func (c *callCounter) Intercept(inv *dikernel.Invocation) {
	c.calls.Add(1)
	inv.Proceed()
}

func registerSample(k *dikernel.Kernel) (*callCounter, error) {
	counter := &callCounter{}
	steps := []func() error{
		func() error {
			return dikernel.RegisterInstance[dikernel.Interceptor](k, dikernel.Interceptor(counter), dikernel.Named("call-counter"))
		},
		func() error {
			return dikernel.Register[clock](k, func() clock { return systemClock{} }, dikernel.Named("clock"))
		},
		func() error {
			return dikernel.Register[*session](k, newSession, dikernel.Named("session"), dikernel.Pooled())
		},
		func() error {
			return dikernel.Register[requestHandler](k, newSessionHandler,
				dikernel.Named("request-handler"),
				dikernel.Transient(),
				dikernel.Interceptors(dikernel.InterceptorNamed("call-counter")),
				dikernel.ProxiedBy(func(target requestHandler, interceptors []dikernel.Interceptor) requestHandler {
					return &handlerProxy{target: target, interceptors: interceptors}
				}),
			)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return counter, nil
}
