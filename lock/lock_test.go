package lock_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/centraunit/dikernel/lock"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"
)

type LockTestSuite struct {
	suite.Suite
	lock *lock.Lock
}

func (s *LockTestSuite) SetupTest() {
	s.lock = lock.New()
}

func (s *LockTestSuite) TestNestedReading() {
	outer := s.lock.ForReading()
	inner := s.lock.ForReading()
	s.True(s.lock.IsReadLockHeld())
	inner.Release()
	s.True(s.lock.IsReadLockHeld())
	outer.Release()
	s.False(s.lock.IsReadLockHeld())
}

func (s *LockTestSuite) TestNestedWriting() {
	outer, err := s.lock.ForWriting()
	s.Require().NoError(err)
	inner, err := s.lock.ForWriting()
	s.Require().NoError(err)
	s.True(s.lock.IsWriteLockHeld())
	inner.Release()
	s.True(s.lock.IsWriteLockHeld())
	outer.Release()
	s.False(s.lock.IsWriteLockHeld())
}

func (s *LockTestSuite) TestNestedUpgradeable() {
	outer, err := s.lock.ForReadingUpgradeable()
	s.Require().NoError(err)
	inner, err := s.lock.ForReadingUpgradeable()
	s.Require().NoError(err)
	s.True(s.lock.IsUpgradeableReadLockHeld())
	inner.Release()
	s.True(s.lock.IsUpgradeableReadLockHeld())
	outer.Release()
	s.False(s.lock.IsUpgradeableReadLockHeld())
}

func (s *LockTestSuite) TestReadingInsideWriting() {
	w, err := s.lock.ForWriting()
	s.Require().NoError(err)
	r := s.lock.ForReading()
	s.True(s.lock.IsReadLockHeld())
	s.True(s.lock.IsWriteLockHeld())
	r.Release()
	s.False(s.lock.IsReadLockHeld())
	s.True(s.lock.IsWriteLockHeld())
	w.Release()
	s.False(s.lock.IsWriteLockHeld())
}

func (s *LockTestSuite) TestReadingAndWritingInsideUpgradeable() {
	u, err := s.lock.ForReadingUpgradeable()
	s.Require().NoError(err)
	defer u.Release()

	r := s.lock.ForReading()
	s.True(s.lock.IsReadLockHeld())
	r.Release()

	w, err := s.lock.ForWriting()
	s.Require().NoError(err)
	s.True(s.lock.IsWriteLockHeld())
	w.Release()

	s.False(s.lock.IsWriteLockHeld())
	s.True(s.lock.IsUpgradeableReadLockHeld())
}

func (s *LockTestSuite) TestPlainReaderCannotEscalate() {
	r := s.lock.ForReading()
	defer r.Release()

	_, err := s.lock.ForWriting()
	s.Require().Error(err)
	s.True(errors.Is(err, lock.ErrRecursion))

	_, err = s.lock.ForReadingUpgradeable()
	var recursion *lock.LockRecursionError
	s.Require().True(errors.As(err, &recursion))
	s.Equal(lock.Read, recursion.Held)
	s.Equal(lock.UpgradeableRead, recursion.Requested)

	s.True(s.lock.IsReadLockHeld())
	s.False(s.lock.IsWriteLockHeld())
}

func (s *LockTestSuite) TestUpgradeFromNestedUpgradeable() {
	outer, err := s.lock.ForReadingUpgradeable()
	s.Require().NoError(err)

	inner, err := s.lock.ForReadingUpgradeable()
	s.Require().NoError(err)
	s.Require().NoError(inner.Upgrade())
	s.True(s.lock.IsWriteLockHeld())
	inner.Release()

	s.False(s.lock.IsWriteLockHeld())
	s.True(s.lock.IsUpgradeableReadLockHeld())
	outer.Release()
	s.False(s.lock.IsUpgradeableReadLockHeld())
}

func (s *LockTestSuite) TestUpgradeWhileNestedWriteHeld() {
	u, err := s.lock.ForReadingUpgradeable()
	s.Require().NoError(err)

	w, err := s.lock.ForWriting()
	s.Require().NoError(err)
	s.Require().NoError(u.Upgrade())
	w.Release()

	s.True(s.lock.IsWriteLockHeld(), "upgraded holder keeps the write lock")
	u.Release()
	s.False(s.lock.IsWriteLockHeld())
	s.False(s.lock.IsUpgradeableReadLockHeld())
}

func (s *LockTestSuite) TestUpgradeOnReadHolderFails() {
	r := s.lock.ForReading()
	defer r.Release()
	s.ErrorIs(r.Upgrade(), lock.ErrRecursion)
}

func (s *LockTestSuite) TestReleaseIsIdempotent() {
	w, err := s.lock.ForWriting()
	s.Require().NoError(err)
	w.Release()
	w.Release()

	done := make(chan struct{})
	go func() {
		h, err := s.lock.ForWriting()
		if err == nil {
			h.Release()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("lock still held after double release")
	}
}

func (s *LockTestSuite) TestWriterExcludesOtherGoroutines() {
	w, err := s.lock.ForWriting()
	s.Require().NoError(err)

	acquired := make(chan struct{})
	go func() {
		r := s.lock.ForReading()
		close(acquired)
		r.Release()
	}()

	select {
	case <-acquired:
		s.Fail("reader entered while writer held the lock")
	case <-time.After(50 * time.Millisecond):
	}
	w.Release()
	<-acquired
}

func (s *LockTestSuite) TestUpgradeableExcludesWriters() {
	u, err := s.lock.ForReadingUpgradeable()
	s.Require().NoError(err)

	var mu sync.Mutex
	order := []string{}
	g := errgroup.Group{}
	g.Go(func() error {
		w, err := s.lock.ForWriting()
		if err != nil {
			return err
		}
		mu.Lock()
		order = append(order, "writer")
		mu.Unlock()
		w.Release()
		return nil
	})

	time.Sleep(20 * time.Millisecond)
	s.Require().NoError(u.Upgrade())
	mu.Lock()
	order = append(order, "upgraded")
	mu.Unlock()
	u.Release()

	s.Require().NoError(g.Wait())
	s.Equal([]string{"upgraded", "writer"}, order)
}

func (s *LockTestSuite) TestConcurrentCounters() {
	counter := 0
	g := errgroup.Group{}
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			for j := 0; j < 100; j++ {
				u, err := s.lock.ForReadingUpgradeable()
				if err != nil {
					return err
				}
				r := s.lock.ForReading()
				_ = counter
				r.Release()
				if err := u.Upgrade(); err != nil {
					return err
				}
				counter++
				u.Release()
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.Equal(1600, counter)
}

func TestLockSuite(t *testing.T) {
	suite.Run(t, new(LockTestSuite))
}
