package faucet

import "golang.org/x/sync/singleflight"

// Deduplicator collapses concurrent claims for the same key into one
// execution. Every caller waiting on a key observes the same result and
// error. The key is forgotten as soon as the execution returns.
type Deduplicator struct {
	group singleflight.Group
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Do runs fn unless a call for key is already in flight, in which case it
// waits for that call. shared reports whether the result went to more than
// one caller.
func (d *Deduplicator) Do(key string, fn func() (*ClaimResult, error)) (res *ClaimResult, err error, shared bool) {
	v, err, shared := d.group.Do(key, func() (any, error) {
		return fn()
	})
	res, _ = v.(*ClaimResult)
	return res, err, shared
}
