// Package refindex maintains the labeled reference-card fingerprint index
// and answers nearest-neighbor queries over it. The index is a linear scan;
// reference sets stay in the low thousands, so scanning beats maintaining
// approximate structures.
package refindex
