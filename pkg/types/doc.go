/*
Package types defines the core data structures shared by every package in
this module.

The package draws a firm line between two families of type:

  - "Encrypted" types are exactly what the backend hands back: opaque
    armored blobs, signature emails, and flags. They carry no secrets in
    the clear and are safe to log (modulo the blobs themselves).
  - "Decrypted" types are what callers actually want: parsed names, typed
    timestamps, and author attribution expressed as a Result so a signature
    failure never turns into a panic or a thrown exception.

Nothing in this package talks to the network, a cache, or a crypto
primitive; it only describes shapes.
*/
package types
