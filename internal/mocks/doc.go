// Package mocks provides function-field test doubles for the service's
// collaborator interfaces.
//
// Each mock method calls its Fn field when set and otherwise returns the
// mock's default values:
//
//	s := &mocks.MockStore{
//	    PingFn: func(ctx context.Context) error { return store.ErrUnavailable },
//	}
package mocks
