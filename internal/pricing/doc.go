// Package pricing resolves a market price for a verified identification.
// Candidates from the pricing source are scored against the card's name,
// catalog number, and set; the best candidate's strongest statistic is
// converted to the display currency. Every failure yields a typed
// unavailable result instead of an error, so a scan completes without a
// price rather than aborting.
package pricing
