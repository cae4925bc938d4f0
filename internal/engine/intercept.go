package engine

import "context"

// Intercept is the instrumentation boundary for one operation. Wrap the real
// implementation in it:
//
//	func (c *Client) Price(ctx context.Context, sku string) (Quote, error) {
//		return engine.Intercept(ctx, c.eng, "pricing.Price", []any{sku},
//			func(ctx context.Context) (Quote, error) { return c.price(ctx, sku) })
//	}
//
// With a PROFILE or TRANSFORM scope bound, fn runs and is recorded. With a
// TEST or SERIALIZE scope bound, fn is skipped and the recorded result is
// returned. Otherwise fn runs directly.
func Intercept[T any](ctx context.Context, e *Engine, op string, args []any, fn func(context.Context) (T, error)) (T, error) {
	mode := e.ec.Mode(ctx)

	switch {
	case mode.Captures():
		res, err := e.recorder.Record(ctx, op, args, func(ctx context.Context) (any, error) {
			return fn(ctx)
		})
		out, _ := res.(T)
		return out, err

	case mode.Replays():
		var out T
		err := e.replayer.Replay(ctx, op, args, &out)
		return out, err
	}

	return fn(ctx)
}
