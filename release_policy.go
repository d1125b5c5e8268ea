package dikernel

import (
	"sort"

	"github.com/centraunit/dikernel/lock"
)

// releasePolicy tracks the root burdens the kernel handed out, so Release
// can find them by instance and Dispose can clean up the forgotten ones.
type releasePolicy struct {
	lock    *lock.Lock
	tracked map[identity]trackedBurden
	seq     uint64
}

type trackedBurden struct {
	burden *Burden
	seq    uint64
}

func newReleasePolicy() *releasePolicy {
	return &releasePolicy{
		lock:    lock.New(),
		tracked: make(map[identity]trackedBurden),
	}
}

// track records b. Instances without identity cannot be found again and
// are not tracked.
func (p *releasePolicy) track(b *Burden) bool {
	key, ok := instanceKey(b.Instance())
	if !ok {
		return false
	}
	h, err := p.lock.ForWriting()
	if err != nil {
		return false
	}
	defer h.Release()
	p.seq++
	p.tracked[key] = trackedBurden{burden: b, seq: p.seq}
	return true
}

func (p *releasePolicy) untrack(instance any) (*Burden, bool) {
	key, ok := instanceKey(instance)
	if !ok {
		return nil, false
	}
	h, err := p.lock.ForWriting()
	if err != nil {
		return nil, false
	}
	defer h.Release()
	t, ok := p.tracked[key]
	if ok {
		delete(p.tracked, key)
	}
	return t.burden, ok
}

func (p *releasePolicy) isTracked(instance any) bool {
	key, ok := instanceKey(instance)
	if !ok {
		return false
	}
	h := p.lock.ForReading()
	defer h.Release()
	_, ok = p.tracked[key]
	return ok
}

// drain empties the policy and returns what it held, oldest first.
func (p *releasePolicy) drain() []*Burden {
	h, err := p.lock.ForWriting()
	if err != nil {
		return nil
	}
	defer h.Release()
	all := make([]trackedBurden, 0, len(p.tracked))
	for _, t := range p.tracked {
		all = append(all, t)
	}
	p.tracked = make(map[identity]trackedBurden)
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })

	out := make([]*Burden, len(all))
	for i, t := range all {
		out[i] = t.burden
	}
	return out
}
