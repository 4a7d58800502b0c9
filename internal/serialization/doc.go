// Package serialization provides the .born container used for checkpoints.
//
// Format v1:
//
//	[4 bytes: Magic "BORN"]
//	[4 bytes: Version (uint32 LE) = 1]
//	[4 bytes: Flags (uint32 LE)]
//	[8 bytes: Header Size (uint64 LE)]
//	[Header: JSON metadata]
//	[Padding to 64 bytes]
//	[Tensor data: raw little-endian bytes]
//
// Format v2 (default) replaces the first 20 bytes with a 64-byte fixed header:
//
//	0x00 magic, 0x04 version = 2, 0x08 flags, 0x0C reserved,
//	0x10 header size, 0x18 data size, 0x20 SHA-256 of the data section
//
// The JSON header lists tensors in write order and may carry an opaque
// architecture record and checkpoint metadata. Readers validate names,
// offsets, sizes, and (v2) the checksum before handing out any data.
//
// Example usage:
//
//	w, err := serialization.NewBornWriter("model.born")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//	err = w.WriteTensors(tensors, serialization.Header{ModelType: "MLP"})
//
//	r, err := serialization.NewBornReader("model.born")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//	tensors, err := r.ReadTensors()
package serialization
