/*
Package exdatum implements the expanded-value protocol: a value lives either in
a compact, self-describing byte form suitable for storage, or in an expanded
in-memory form that is directly addressable and owned by a region (see package
region).

We implement:

1. Flattening: FlatSize computes (and caches) the exact compact size of an
expanded value, FlattenInto writes the compact form into a buffer of exactly
that size.

2. Expansion: Type.Expand and Codec.Normalize turn compact bytes into an
expanded value living in a fresh child region, and return already expanded
values unchanged.

3. Teardown: every expanded value is bound to its region, and memory it holds
outside the region is released exactly once when the region is released.

4. Toasting: Codec.Toast compresses large compact values and moves very large
ones to an ExternalStore; Codec.Detoast reverses that.

Value types plug in by embedding Header, implementing Methods, and defining a
Type with NewType. See packages scalar and matrix.

# Error handling

Malformed bytes produce a *DataError. Caller bugs (a flatten buffer of the
wrong size, a corrupted header, a value used after its region was released)
panic with an error wrapping ErrContract.

# Binary encoding

All integers are little-endian.

**Length word** (u32): total length in the low 30 bits, form in the top 2 bits
(0 plain, 1 compressed, 2 external). A compact value never exceeds 1 GiB.

**Plain value**: length word, type tag (u16), reserved (u16, zero), then the
type's payload. The header is 8 bytes, so fixed-width payload fields are
8-byte aligned.

**Compressed value**: length word, raw size (u32), method (u8), reserved (3
bytes, zero), then the compressed bytes of the whole plain value.

**External pointer** (32 bytes): length word, raw size (u32), id (u64), stored
size (u32), reserved (u32), xxhash64 checksum of the stored bytes (u64). The
stored bytes are a plain or compressed value.
*/
package exdatum
