// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tss

type entry struct {
	key   Key
	value any
}

// Store holds one thread's values. It is owned by that thread and is not
// safe for concurrent use; after the thread has ended, whoever cleans it up
// becomes the owner.
type Store struct {
	values map[uint32]*entry
	order  []uint32 // slots in first-use order
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{values: make(map[uint32]*entry)}
}

// Get returns the value stored under k, or nil.
func (s *Store) Get(k Key) any {
	e := s.values[k.Slot]
	if e == nil || e.key != k {
		return nil
	}
	return e.value
}

// Set stores v under k. A value left in the slot by an older key
// generation is dropped without running its destructor.
func (s *Store) Set(k Key, v any) {
	e := s.values[k.Slot]
	if e == nil {
		e = &entry{}
		s.values[k.Slot] = e
		s.order = append(s.order, k.Slot)
	}
	e.key = k
	e.value = v
}

// Forget drops the value stored under k, if any, without destructing it.
func (s *Store) Forget(k Key) {
	if e := s.values[k.Slot]; e != nil && e.key == k {
		e.value = nil
	}
}

// Len returns the number of non-nil values.
func (s *Store) Len() int {
	n := 0
	for _, e := range s.values {
		if e.value != nil {
			n++
		}
	}
	return n
}

// CleanupResult describes one run of Store.Cleanup.
type CleanupResult struct {
	Passes     int // scans performed
	Destructed int // destructor calls
	Pending    int // values discarded although their key has a destructor
}

// Converged reports whether cleanup ran every destructor it owed.
func (r CleanupResult) Converged() bool {
	return r.Pending == 0
}

// Cleanup runs the destructors of s against table t, then empties s.
//
// Each pass visits the values in first-use order. A value is cleared
// before its destructor runs, so a destructor that stores into its own key
// schedules another call instead of recursing. Passes repeat while the
// previous one ran a destructor, at most DestructorIterations times.
// Whatever is left after the last pass is discarded.
func (s *Store) Cleanup(t *Table) CleanupResult {
	var res CleanupResult

	for res.Passes < DestructorIterations {
		res.Passes++
		ran := false

		// Destructors may add entries; they are picked up in this pass.
		for i := 0; i < len(s.order); i++ {
			e := s.values[s.order[i]]
			if e.value == nil {
				continue
			}
			dtor, ok := t.Destructor(e.key)
			if !ok || dtor == nil {
				continue
			}

			v := e.value
			e.value = nil
			dtor(v)
			ran = true
			res.Destructed++
		}

		if !ran {
			break
		}
	}

	for _, e := range s.values {
		if e.value == nil {
			continue
		}
		if dtor, ok := t.Destructor(e.key); ok && dtor != nil {
			res.Pending++
		}
	}

	s.values = make(map[uint32]*entry)
	s.order = nil
	return res
}
