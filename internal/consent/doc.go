// Package consent gates third-party embeds (video players, live streams) on
// per-visitor opt-in.
//
// Each request carries a Session describing which categories the visitor has
// granted. Sessions hydrate asynchronously from a Store; until hydration
// finishes a Gate renders only its empty container, so a visitor who already
// consented never sees a prompt flash. Once loaded, a Gate renders its
// children when the category is granted (or, for indexable content, when the
// user agent is a known search crawler) and a consent prompt otherwise.
//
// Granting is monotonic: a category only ever moves from denied to granted,
// and a grant touches no other category.
package consent
