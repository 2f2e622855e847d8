// Package imagehash computes multi-crop perceptual fingerprints for card
// photographs. A fingerprint is a triple of 64-bit average hashes taken over
// the full frame, a detected card crop, and an inner crop of that card;
// distances blend the three levels so the card face dominates matching while
// border noise and framing error stay forgiven.
package imagehash
