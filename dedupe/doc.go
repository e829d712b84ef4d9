/*
Package dedupe contains the spill-over cache used to find duplicate records in files much
larger than memory.

Keys seen so far are kept in an in-memory set until the bytes held reach the memory
budget. The set is then flushed to an on-disk hash table of fixed width keys and
starts again empty. Once the disk table exists every new key is written to both, so a
key that was ever inserted stays visible for the rest of the pass.

Disk keys must have a fixed width, so each key is encoded before it is stored:

* digest (default): one 32 byte BLAKE3 hash of the whole key.
** No length limit.
** False positive rate is the 256 bit collision rate.

* chunk: the key split into 127 byte chunks, each tagged with its position.
** Keys up to 256 chunks (32512 bytes).
** A key is on disk if all of its chunks are. Chunks are not bound to the key they came
   from, so two long keys made of the same chunks at the same positions in different
   combinations can be reported as duplicates once spilled.

The memory budget only counts key bytes. Map overhead comes on top of it.
*/
package dedupe
