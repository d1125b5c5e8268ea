package dikernel_test

import (
	"context"
	"testing"

	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/centraunit/dikernel"
	"github.com/centraunit/dikernel/mock"
)

// activatorMock builds a fresh instance per Create when given a factory.
type activatorMock struct {
	testifymock.Mock
}

func (a *activatorMock) Create(ctx *dikernel.CreationContext, burden *dikernel.Burden) (any, error) {
	args := a.Called(ctx, burden)
	if factory, ok := args.Get(0).(func() any); ok {
		return factory(), args.Error(1)
	}
	return args.Get(0), args.Error(1)
}

func (a *activatorMock) Destroy(instance any) error {
	return a.Called(instance).Error(0)
}

type PoolTestSuite struct {
	suite.Suite
	activator *activatorMock
	model     *dikernel.ComponentModel
	ctx       *dikernel.CreationContext
}

func (s *PoolTestSuite) SetupTest() {
	s.activator = &activatorMock{}
	s.activator.On("Create", testifymock.Anything, testifymock.Anything).
		Return(func() any { return mock.NewConnection() }, nil)
	s.activator.On("Destroy", testifymock.Anything).Return(nil)
	s.model = &dikernel.ComponentModel{Name: "connection"}
	s.ctx = dikernel.NewCreationContext(context.Background(), nil)
}

func (s *PoolTestSuite) create(ctx *dikernel.CreationContext) (*dikernel.Burden, error) {
	return dikernel.CreateBurden(ctx, s.model, s.activator, true)
}

func (s *PoolTestSuite) request(p *dikernel.Pool) *mock.Connection {
	b, err := p.Request(s.ctx, s.create)
	s.Require().NoError(err)
	return b.Instance().(*mock.Connection)
}

func (s *PoolTestSuite) TestFirstRequestFillsPool() {
	p := dikernel.NewPool(3, 5, s.activator)

	s.request(p)
	s.activator.AssertNumberOfCalls(s.T(), "Create", 3)
	s.Equal(1, p.InUse())
	s.Equal(2, p.Available())
}

func (s *PoolTestSuite) TestGrowsBeyondInitialSize() {
	p := dikernel.NewPool(1, 5, s.activator)

	a := s.request(p)
	b := s.request(p)
	s.NotSame(a, b)
	s.activator.AssertNumberOfCalls(s.T(), "Create", 2)
	s.Equal(2, p.InUse())
	s.Equal(0, p.Available())
}

func (s *PoolTestSuite) TestReleasedInstancesAreReusedAndRecycled() {
	p := dikernel.NewPool(0, 5, s.activator)

	a := s.request(p)
	destroyed, err := p.Release(a)
	s.NoError(err)
	s.False(destroyed)
	s.Equal(1, a.Recycled)
	s.Equal(1, p.Available())

	again := s.request(p)
	s.Same(a, again)
	s.activator.AssertNumberOfCalls(s.T(), "Create", 1)
}

func (s *PoolTestSuite) TestReuseIsLastInFirstOut() {
	p := dikernel.NewPool(0, 5, s.activator)

	a := s.request(p)
	b := s.request(p)
	_, _ = p.Release(a)
	_, _ = p.Release(b)

	s.Same(b, s.request(p))
	s.Same(a, s.request(p))
}

func (s *PoolTestSuite) TestFullPoolDestroysReturnedInstances() {
	p := dikernel.NewPool(0, 1, s.activator)

	a := s.request(p)
	b := s.request(p)

	destroyed, err := p.Release(a)
	s.NoError(err)
	s.False(destroyed)

	destroyed, err = p.Release(b)
	s.NoError(err)
	s.True(destroyed)
	s.activator.AssertCalled(s.T(), "Destroy", b)
	s.activator.AssertNumberOfCalls(s.T(), "Destroy", 1)
	s.Equal(1, p.Available())
	s.Equal(0, p.InUse())
}

func (s *PoolTestSuite) TestUnknownAndRepeatedReleasesAreIgnored() {
	p := dikernel.NewPool(0, 2, s.activator)

	destroyed, err := p.Release(mock.NewConnection())
	s.NoError(err)
	s.False(destroyed)

	a := s.request(p)
	_, _ = p.Release(a)
	destroyed, err = p.Release(a)
	s.NoError(err)
	s.False(destroyed)
	s.Equal(1, p.Available(), "an instance is never idle twice")
	s.Equal(1, a.Recycled)
}

func (s *PoolTestSuite) TestDisposeDestroysIdleInstances() {
	p := dikernel.NewPool(2, 4, s.activator)

	inUse := s.request(p)
	s.NoError(p.Dispose())
	s.activator.AssertNumberOfCalls(s.T(), "Destroy", 1)
	s.Equal(0, p.Available())

	destroyed, err := p.Release(inUse)
	s.NoError(err)
	s.True(destroyed, "instances returned to a disposed pool are destroyed")
	s.activator.AssertNumberOfCalls(s.T(), "Destroy", 2)

	destroyed, err = p.Release(inUse)
	s.NoError(err)
	s.False(destroyed, "a second return is ignored")
	s.activator.AssertNumberOfCalls(s.T(), "Destroy", 2)

	_, err = p.Request(s.ctx, s.create)
	s.ErrorIs(err, dikernel.ErrPoolDisposed)
}

func (s *PoolTestSuite) TestInstancesWithoutIdentityAreRejected() {
	activator := &activatorMock{}
	activator.On("Create", testifymock.Anything, testifymock.Anything).Return(mock.Order{ID: 1}, nil)
	activator.On("Destroy", testifymock.Anything).Return(nil)
	p := dikernel.NewPool(0, 2, activator)

	_, err := p.Request(s.ctx, func(ctx *dikernel.CreationContext) (*dikernel.Burden, error) {
		return dikernel.CreateBurden(ctx, s.model, activator, true)
	})
	var cfgErr *dikernel.PoolConfigurationError
	s.ErrorAs(err, &cfgErr)
}

func (s *PoolTestSuite) TestConcurrentRequestAndRelease() {
	p := dikernel.NewPool(2, 4, s.activator)

	var g errgroup.Group
	for range 16 {
		g.Go(func() error {
			for range 200 {
				b, err := p.Request(dikernel.NewCreationContext(context.Background(), nil), s.create)
				if err != nil {
					return err
				}
				if _, err := p.Release(b.Instance()); err != nil {
					return err
				}
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.Equal(0, p.InUse())
	s.LessOrEqual(p.Available(), 4)
}

func (s *PoolTestSuite) TestPooledLifestyleThroughKernel() {
	k := dikernel.New()
	defer k.Dispose()
	s.Require().NoError(dikernel.Register[*mock.Connection](k, mock.NewConnection, dikernel.PooledWithSize(1, 2)))

	conns := make([]*mock.Connection, 3)
	for i := range conns {
		c, err := dikernel.Resolve[*mock.Connection](k)
		s.Require().NoError(err)
		conns[i] = c
	}
	for _, c := range conns {
		s.NoError(k.Release(c))
	}
	s.True(conns[2].Closed, "the third return overflows a pool of two")
	s.False(conns[0].Closed)
	s.Equal(1, conns[0].Recycled)

	again, err := dikernel.Resolve[*mock.Connection](k)
	s.Require().NoError(err)
	s.Same(conns[1], again)
}

func (s *PoolTestSuite) TestPoolSizeValidation() {
	k := dikernel.New()
	defer k.Dispose()

	err := dikernel.Register[*mock.Connection](k, mock.NewConnection, dikernel.PooledWithSize(3, 2))
	var regErr *dikernel.ComponentRegistrationError
	s.ErrorAs(err, &regErr)

	s.Require().NoError(dikernel.Register[*mock.Connection](k, mock.NewConnection, dikernel.Pooled()))
	info, ok := k.Component("*mock.Connection")
	s.Require().True(ok)
	s.Equal(dikernel.LifestylePooled, info.Lifestyle)
}

func TestPoolSuite(t *testing.T) {
	suite.Run(t, new(PoolTestSuite))
}
