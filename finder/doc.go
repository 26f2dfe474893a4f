// Package finder parses finder call signatures.
//
// A signature encodes a query in its name instead of a query DSL:
//
//	^(find|get)(Latest|Oldest)?(\d*)By(.+)$
//
//   - find returns a single row, get returns a sequence
//   - Latest/Oldest order by the creation field, descending or ascending
//   - digits before By limit a get; they are ignored for find
//   - the remainder names the filtered column, converted to snake_case
//
// Examples:
//
//	finder.Parse("findByEmail")         // single, field "email"
//	finder.Parse("getLatest3ByStatus")  // multi, latest, limit 3, field "status"
//	finder.Parse("getOldestByUserID")   // multi, oldest, field "user_id"
//
// Anything else yields a *SignatureError matching ErrUnrecognizedSignature.
package finder
