// Package setnumber verifies the printed catalog number of an identified
// card. The number is the pricing join key, so it must be confirmed by a
// focused crop re-query or an external catalog cross-check with digit-level
// autocorrection before a scan may be priced.
package setnumber
