// Package ratelimit throttles requests per client address with token
// buckets held in memory.
//
// Buckets are local to one process. The server keeps two limiters: a
// generous one for page views and a tight one for the write endpoints
// (consent grants and push subscriptions), which are the only requests
// that touch the database for writing.
package ratelimit
