// Package logger builds the *slog.Logger shared by the storefront packages and
// provides attribute helpers so that every component names its log keys the
// same way.
//
// New assembles a text or JSON handler from functional options and wraps it with
// a decorator that pulls request-scoped values (for example the outbound request
// id) out of the context on every record.
//
//	log := logger.New(
//	    logger.WithLevelName(cfg.LogLevel),
//	    logger.WithFormat(logger.Format(cfg.LogFormat)),
//	    logger.WithContextExtractors(requestid.LogExtractor),
//	)
//	log.InfoContext(ctx, "cart partition loaded",
//	    logger.Component("cart"),
//	    logger.Partition(key.String()),
//	)
//
// Helpers such as Error return an empty slog.Attr for nil input, so callers can
// log optional values without nil checks. Packages that accept a logger default
// to Discard when none is supplied.
package logger
