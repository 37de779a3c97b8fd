/*
Package xattr generates and parses the extended-attributes JSON sidecar
that travels inside a node's encrypted crypto bundle.

The JSON shape is intentionally small and forgiving: a top-level object
with recognized keys Common, Media, Camera, and Location. Only Common is
understood by this package today; Media and Camera are retained verbatim
per file under ClaimedAdditionalMetadata so a future version of this
module (or another client sharing the same account) does not lose data it
doesn't yet know how to interpret.

Parsing is total. A malformed payload — wrong JSON, wrong field types, an
unparseable date — never aborts the parse; the offending field comes back
empty and a warning is logged instead.
*/
package xattr
