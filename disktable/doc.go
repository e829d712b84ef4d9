/*
Package disktable is an ephemeral, file-backed hash set of fixed-width keys.

It holds keys that no longer fit in memory during a single deduplication pass.
Keys can be inserted and tested for membership; there is no deletion, no iteration
and nothing survives Close, which removes the backing file.

Layout is a flat open addressing table. Every slot is one state byte followed by
the key bytes, slot position is the xxHash64 of the key masked to the table size
and collisions probe linearly. The table doubles (rehashing into a new file) before
the configured load percentage is exceeded, so probing always finds an empty slot.

On Linux, macOS and the BSDs the file is memory mapped; other platforms fall back
to positioned reads and writes on the same layout.
*/
package disktable
