/*
Package extdedup removes duplicate lines or CSV rows from inputs of any size in a single
streaming pass, keeping the first occurrence of each and preserving input order.

Without a column selection every line is a key. With one, each CSV record is keyed on the
selected fields and written out whole. Keys are held by a dedupe.Cache, so memory use stays
within the configured budget however large the input is.
*/
package extdedup
