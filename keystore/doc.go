// Package keystore holds the process's live signing keys in memory.
//
// The store is the single owner of secret key material: secrets are
// created inside it (Generate) or copied into it after validation
// (Import) and never leave. Public keys are derived once and cached, so
// lookups never touch the secret. Deletion and shutdown zeroize the
// backing memory before the slot is released, including when an operation
// fails partway.
//
// Mutating operations are serialized; signing and public key lookups on
// distinct keys run concurrently. A delete becomes visible to new
// requests immediately, while in-flight signatures on the same key finish
// on the pre-deletion material before zeroization proceeds.
//
// Keys live for the process lifetime only. Sealing to persistent storage
// is the responsibility of an external mechanism and no part of this
// package serializes secrets.
package keystore
