// Package mocks holds test doubles for the collaborators shared across
// packages: the task archive store and the multi-device mediator. Each
// double has a function field per method and falls back to a working
// in-memory behavior when the field is nil, for example
//
//	archive := mocks.NewMockArchiveStore()
//	archive.ReplaceFn = func(ctx context.Context, oldEncoding, newEncoding string) error {
//	    return store.ErrStoreUnavailable
//	}
package mocks
