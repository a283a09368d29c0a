// Package httpmw provides HTTP middleware for the public site.
//
// httpserver.NewHandler composes them, outermost first: security headers,
// panic recovery, request ID, client IP, rate limiting, OTel tracing, trace
// response headers, metrics, request logger, then the chi router with
// compression, route annotation, access log and body limits.
//
// Query strings and user agents are never logged. Visitor ids stay out of
// access logs too; the consent handlers log them only on grants.
package httpmw
