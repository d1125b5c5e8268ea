// Package lock provides a reentrant read-write lock with upgradeable reads.
//
// Ownership is tracked per goroutine. A goroutine may nest acquisitions of
// the same mode, take a read lock while it holds a write or upgradeable-read
// lock, and take a write lock while it holds an upgradeable-read lock. A
// goroutine holding a plain read lock can never escalate: asking for a write
// or upgradeable-read lock in that state returns a *LockRecursionError
// instead of deadlocking.
package lock

import (
	"errors"
	"fmt"
	"sync"
)

// ErrRecursion is matched by every *LockRecursionError.
var ErrRecursion = errors.New("lock recursion not allowed")

// Mode identifies how a Holder acquired the lock.
type Mode int

const (
	Read Mode = iota
	Write
	UpgradeableRead
)

func (m Mode) String() string {
	switch m {
	case Read:
		return "read"
	case Write:
		return "write"
	case UpgradeableRead:
		return "upgradeable-read"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// LockRecursionError is returned when a goroutine requests a mode it cannot
// obtain from the mode it already holds.
type LockRecursionError struct {
	Held      Mode
	Requested Mode
}

func (e *LockRecursionError) Error() string {
	return fmt.Sprintf("lock recursion: cannot acquire %s lock while holding a %s lock", e.Requested, e.Held)
}

func (e *LockRecursionError) Is(target error) bool {
	return target == ErrRecursion
}

// owner is the per-goroutine acquisition record. Only the owning goroutine
// mutates its fields; the map holding it is guarded by Lock.mu.
type owner struct {
	reads        int
	writes       int
	upgradeables int

	shared    bool // rw.RLock held
	exclusive bool // rw.Lock held
	gate      bool // Lock.gate held
}

// Lock is a reentrant read-write lock. The zero value is ready to use.
type Lock struct {
	rw sync.RWMutex
	// gate serializes writers and upgradeable readers so an upgradeable
	// reader can trade its shared hold for an exclusive one without a
	// competing writer slipping in between.
	gate sync.Mutex

	mu     sync.Mutex
	owners map[int64]*owner
}

// New returns an unlocked Lock.
func New() *Lock {
	return &Lock{}
}

// ForReading acquires the lock for reading. It never fails: a goroutine
// that already holds any mode simply nests inside it.
func (l *Lock) ForReading() *Holder {
	id := ownerID()
	o := l.ownerOf(id, true)
	if !o.shared && !o.exclusive {
		l.rw.RLock()
		o.shared = true
	}
	o.reads++
	return &Holder{lock: l, id: id, mode: Read}
}

// ForWriting acquires the lock exclusively.
func (l *Lock) ForWriting() (*Holder, error) {
	id := ownerID()
	o := l.ownerOf(id, true)
	if err := l.enterWrite(o); err != nil {
		return nil, err
	}
	return &Holder{lock: l, id: id, mode: Write}, nil
}

// ForReadingUpgradeable acquires a read lock that may later be upgraded to
// a write lock with Holder.Upgrade. Only one goroutine at a time holds an
// upgradeable read, and it excludes writers.
func (l *Lock) ForReadingUpgradeable() (*Holder, error) {
	id := ownerID()
	o := l.ownerOf(id, true)
	if o.writes == 0 && o.upgradeables == 0 {
		if o.reads > 0 {
			return nil, &LockRecursionError{Held: Read, Requested: UpgradeableRead}
		}
		l.gate.Lock()
		o.gate = true
		l.rw.RLock()
		o.shared = true
	}
	o.upgradeables++
	return &Holder{lock: l, id: id, mode: UpgradeableRead}, nil
}

// IsReadLockHeld reports whether the calling goroutine is inside a read scope.
func (l *Lock) IsReadLockHeld() bool {
	o := l.ownerOf(ownerID(), false)
	return o != nil && o.reads > 0
}

// IsWriteLockHeld reports whether the calling goroutine holds the lock
// exclusively, either through a write scope or an upgraded holder.
func (l *Lock) IsWriteLockHeld() bool {
	o := l.ownerOf(ownerID(), false)
	return o != nil && o.writes > 0
}

// IsUpgradeableReadLockHeld reports whether the calling goroutine is inside
// an upgradeable-read scope.
func (l *Lock) IsUpgradeableReadLockHeld() bool {
	o := l.ownerOf(ownerID(), false)
	return o != nil && o.upgradeables > 0
}

func (l *Lock) ownerOf(id int64, create bool) *owner {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.owners[id]
	if !ok && create {
		if l.owners == nil {
			l.owners = make(map[int64]*owner)
		}
		o = &owner{}
		l.owners[id] = o
	}
	return o
}

func (l *Lock) enterWrite(o *owner) error {
	switch {
	case o.writes > 0:
	case o.upgradeables > 0:
		// The gate is already ours, so no writer can get between these two.
		l.rw.RUnlock()
		o.shared = false
		l.rw.Lock()
		o.exclusive = true
	case o.reads > 0:
		return &LockRecursionError{Held: Read, Requested: Write}
	default:
		l.gate.Lock()
		o.gate = true
		l.rw.Lock()
		o.exclusive = true
	}
	o.writes++
	return nil
}

// settle brings the underlying mutexes in line with the owner's counters
// after a scope exits.
func (l *Lock) settle(id int64, o *owner) {
	switch {
	case o.writes > 0:
		return
	case o.reads > 0 || o.upgradeables > 0:
		if o.exclusive {
			l.rw.Unlock()
			o.exclusive = false
			l.rw.RLock()
			o.shared = true
		}
		if o.upgradeables == 0 && o.gate {
			l.gate.Unlock()
			o.gate = false
		}
	default:
		if o.exclusive {
			l.rw.Unlock()
		} else if o.shared {
			l.rw.RUnlock()
		}
		if o.gate {
			l.gate.Unlock()
		}
		l.mu.Lock()
		delete(l.owners, id)
		l.mu.Unlock()
	}
}

// Holder is a scoped acquisition of a Lock. Release it exactly where the
// scope ends, usually with defer.
type Holder struct {
	lock     *Lock
	id       int64
	mode     Mode
	upgraded bool
	released bool
}

// Mode returns the mode the holder was acquired with.
func (h *Holder) Mode() Mode {
	return h.mode
}

// Upgrade converts an upgradeable-read holder into a write holder in place.
// It is a no-op on a write holder or on a holder that was already upgraded.
func (h *Holder) Upgrade() error {
	switch {
	case h.released:
		return errors.New("lock: upgrade of a released holder")
	case h.mode == Write || h.upgraded:
		return nil
	case h.mode == Read:
		return &LockRecursionError{Held: Read, Requested: Write}
	}
	o := h.lock.ownerOf(h.id, true)
	if err := h.lock.enterWrite(o); err != nil {
		return err
	}
	h.upgraded = true
	return nil
}

// Release exits the scope. Calling it more than once has no effect.
func (h *Holder) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true
	o := h.lock.ownerOf(h.id, false)
	if o == nil {
		return
	}
	if h.upgraded {
		o.writes--
	}
	switch h.mode {
	case Read:
		o.reads--
	case Write:
		o.writes--
	case UpgradeableRead:
		o.upgradeables--
	}
	h.lock.settle(h.id, o)
}
