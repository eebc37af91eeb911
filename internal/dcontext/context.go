package dcontext

import "context"

type versionKey struct{}

func (versionKey) String() string { return "version" }

// Background returns a non-nil, empty root context for the process.
func Background() context.Context {
	return context.Background()
}

// WithVersion returns a context carrying the running binary's version, for
// inclusion in log lines emitted through it.
func WithVersion(ctx context.Context, version string) context.Context {
	ctx = context.WithValue(ctx, versionKey{}, version)
	return WithLogger(ctx, GetLogger(ctx, versionKey{}))
}

// stringMapContext proxies Value lookups through a string-keyed map before
// falling back to its parent. Used to attach configuration-provided static
// log fields without allocating a context layer per field.
type stringMapContext struct {
	context.Context
	m map[string]interface{}
}

// WithValues returns a context that resolves the given map's keys before
// falling back to ctx. Only string keys are supported.
func WithValues(ctx context.Context, m map[string]interface{}) context.Context {
	mo := make(map[string]interface{}, len(m))
	for k, v := range m {
		mo[k] = v
	}

	return stringMapContext{Context: ctx, m: mo}
}

func (smc stringMapContext) Value(key interface{}) interface{} {
	if ks, ok := key.(string); ok {
		if v, ok := smc.m[ks]; ok {
			return v
		}
	}

	return smc.Context.Value(key)
}

// DetachedContext returns a context that carries ctx's values (logger,
// request fields) but is never canceled by ctx's cancellation. Used so an
// install started on behalf of a request that later disconnects can still
// run to completion and populate the cache (spec §5, Cancellation).
func DetachedContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
