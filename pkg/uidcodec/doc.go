/*
Package uidcodec encodes and decodes the composite, tilde-delimited
identifiers used throughout this module: node, revision, share
invitation, share member, share public link, and device UIDs.

The codec is pure: it never logs, never allocates more than the split
itself requires, and never fails silently. Splitting a UID of the wrong
arity returns a *FormatError rather than guessing which parts are
missing.
*/
package uidcodec
