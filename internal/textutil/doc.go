// Package textutil provides the normalization and comparison helpers used
// when matching card names, set names, and catalog numbers across sources.
package textutil
