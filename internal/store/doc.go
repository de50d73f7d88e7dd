// Package store groups the worklist backends.
//
// Each backend loads product rows from durable storage, filters out rows that
// cannot yield a canonical product URL, and persists completion marks before
// flipping in-memory state. csv is the default file-backed implementation,
// sqlite is the embedded-database alternative, and memory backs tests.
package store
