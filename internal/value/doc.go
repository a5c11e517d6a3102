// Package value provides the constrained value types carried as call
// arguments and call results between services.
//
// Every leg's args and every outcome's value are built from the sealed
// Value interface: Null, String, Int, Bool, List and Object. Floats are
// rejected everywhere so that canonical encoding is stable across replays.
//
// MarshalCanonical produces RFC 8785 style JSON (UTF-16 key order, NFC
// normalized strings, no HTML escaping). It is the only encoding used for
// content-addressed identifiers (see Digest).
package value
