// Package row defines the record model shared by every gridsync package.
//
// A row is a flat mapping from field name to scalar value plus a stable
// identifier. Values are constrained to null, string, int, float and bool.
// Float is a distinct type from Int: 2 and 2.0 are different values, and
// Float always serializes with a fraction or exponent so the distinction
// survives a round trip.
//
// This package imports nothing internal. The tracker, table, engine and the
// remote stores all build on it.
//
// Key constraints:
//   - NO bare float64 in rows or traces, use Float
//   - Canonical JSON (MarshalCanonical) is the only serialization used for
//     traces and storage
//   - Draft rows carry a locally generated placeholder ID and are never sent
//     to a remote store with that ID
package row
