package subagent

import "context"

// depthKey is the context key tracking sub-agent nesting depth. The outer
// agent runs at depth 0; each spawned child observes its parent's depth + 1.
type depthKey struct{}

// WithDepth stamps ctx with a nesting depth.
func WithDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey{}, depth)
}

// DepthFromContext returns the nesting depth stamped by WithDepth, or 0.
func DepthFromContext(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}
