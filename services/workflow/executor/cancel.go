// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"context"
	"fmt"
)

// CancellationToken is a cancellable context scoped to one execution.
//
// Every process started under Context() is killed when Cancel is called,
// and work started after Cancel fails immediately. A token is not reused
// across runs.
//
// Thread Safety: Safe for concurrent use.
type CancellationToken struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// NewCancellationToken derives a token from parent. A nil parent uses
// context.Background.
func NewCancellationToken(parent context.Context) *CancellationToken {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	return &CancellationToken{ctx: ctx, cancel: cancel}
}

// Context returns the context to pass to Execute.
func (t *CancellationToken) Context() context.Context {
	return t.ctx
}

// Cancel requests cancellation. Only the first reason is kept.
func (t *CancellationToken) Cancel(reason string) {
	if reason == "" {
		t.cancel(ErrCancelled)
		return
	}
	t.cancel(fmt.Errorf("%w: %s", ErrCancelled, reason))
}

// IsCancelled reports whether the token (or its parent) was cancelled.
func (t *CancellationToken) IsCancelled() bool {
	return t.ctx.Err() != nil
}

// Cause returns why the token was cancelled, or nil.
func (t *CancellationToken) Cause() error {
	return context.Cause(t.ctx)
}

// Release frees the token's resources without reporting a reason.
func (t *CancellationToken) Release() {
	t.cancel(nil)
}
