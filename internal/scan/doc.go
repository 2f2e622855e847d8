// Package scan sequences one capture through identification, catalog-number
// verification, and pricing. Pricing runs only for a verified, well-formed
// catalog number; everything else is recorded as blocked. Every scan leaves
// an append-only audit record that user feedback may later annotate but
// never rewrite.
package scan
