// Package identify orchestrates remote-model card identification: content
// addressed caching, the daily budget gate, an ordered model attempt chain
// with policy-driven escalation, and reference-index verification of each
// extraction.
package identify
