// Command cardscan identifies collectible cards from photos, verifies their
// catalog numbers, and resolves market prices.
package main
