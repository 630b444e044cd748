// Package intercept buffers, filters and releases slog records before they
// reach a downstream handler.
//
// An [Interceptor] is made active for one logical call chain by pushing it
// into a [context.Context] through a [Scope]. A [Handler] wraps any
// [slog.Handler]; for every record it looks up the active interceptor and
// forwards whatever the interceptor releases:
//
//	logger := slog.New(intercept.NewHandler(slog.NewJSONHandler(os.Stdout, nil)))
//
//	ctx = intercept.PushLevelBuffer(ctx, slog.LevelError)
//	logger.DebugContext(ctx, "cache miss")        // held
//	logger.ErrorContext(ctx, "upstream failed")   // releases both
//
// # Buffers
//
// [RingBuffer] keeps the most recent events below a trigger level in a
// sealed [logring.Ring] and releases them, oldest first, when an event at or
// above the trigger arrives. [LevelBuffer] does the same once and then lets
// every later event through.
//
// # Composition
//
// [Chain], [And] and [Or] combine interceptors; [Drop], [DropLevels],
// [Pass] and [Sample] cover filtering and sampling.
package intercept
