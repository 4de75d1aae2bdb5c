// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api

import (
	"github.com/kolkov/threadkit/internal/threads/status"
	"github.com/kolkov/threadkit/internal/threads/tss"
)

// Key is a thread-specific storage key.
type Key = tss.Key

// CreateKey allocates a key. When a thread ends holding a non-nil value
// under the key, dtor is called with it. The number of keys is limited by
// the backend; running out returns ErrNoMemory.
func CreateKey(dtor func(value any)) (Key, error) {
	r := get()
	k, err := r.keys.Create(dtor)
	if err != nil {
		return Key{}, err
	}
	r.log.Debug("tss key created", "key", k.String(), "destructor", dtor != nil)
	return k, nil
}

// DeleteKey frees k. Destructors are not run for values threads still
// hold under k; those values become unreachable.
func DeleteKey(k Key) error {
	r := get()
	if err := r.keys.Delete(k); err != nil {
		return err
	}
	r.Context().TSS.Forget(k)
	r.log.Debug("tss key deleted", "key", k.String())
	return nil
}

// Get returns the calling thread's value for k, or nil.
func Get(k Key) any {
	r := get()
	if !r.keys.Valid(k) {
		return nil
	}
	return r.Context().TSS.Get(k)
}

// Set stores v as the calling thread's value for k.
func Set(k Key, v any) error {
	r := get()
	if !r.keys.Valid(k) {
		return status.Errorf(status.ErrError, "tss: set on invalid %s", k)
	}
	r.Context().TSS.Set(k, v)
	return nil
}
