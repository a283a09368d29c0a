// Package ambassadors holds the sanctuary's ambassador catalogue and serves
// the /ambassadors pages.
//
// The catalogue is static and compiled in. Ambassadors are keyed by a
// camelCase key and addressed in URLs by its kebab-case form, so
// "stompyTheEmu" lives at /ambassadors/stompy-the-emu. Retired ambassadors
// stay in the catalogue for history but have no page.
package ambassadors
