package finder

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/goliatone/go-repository-finder/internal/naming"
)

// ErrUnrecognizedSignature is matched by every SignatureError.
var ErrUnrecognizedSignature = errors.New("finder: unrecognized signature")

// SignatureError reports a call pattern that does not match the finder grammar.
// Callers should fall back to their own "no such method" handling.
type SignatureError struct {
	Signature string
}

// Error implements the error interface.
func (e *SignatureError) Error() string {
	return "finder: unrecognized signature " + strconv.Quote(e.Signature)
}

// Is reports whether target is ErrUnrecognizedSignature.
func (e *SignatureError) Is(target error) bool {
	return target == ErrUnrecognizedSignature
}

// Operation selects how many rows a finder returns.
type Operation int

const (
	// SingleResult is the "find" family: one row or not found.
	SingleResult Operation = iota
	// MultiResult is the "get" family: an ordered sequence of rows.
	MultiResult
)

func (o Operation) String() string {
	if o == MultiResult {
		return "get"
	}
	return "find"
}

// Recency is the optional ordering modifier encoded in a signature.
type Recency int

const (
	Unspecified Recency = iota
	Latest
	Oldest
)

func (r Recency) String() string {
	switch r {
	case Latest:
		return "latest"
	case Oldest:
		return "oldest"
	default:
		return "unspecified"
	}
}

// Intent is the parsed form of a call signature.
// Limit is zero unless Operation is MultiResult.
type Intent struct {
	Operation Operation
	Recency   Recency
	Limit     int
	Field     string
}

var signaturePattern = regexp.MustCompile(`^(find|get)(Latest|Oldest)?(\d*)By(.+)$`)

// Parse turns a call pattern such as "getLatest3ByStatus" into an Intent.
// Digits parsed for a "find" signature are dropped.
func Parse(signature string) (Intent, error) {
	m := signaturePattern.FindStringSubmatch(signature)
	if m == nil {
		return Intent{}, &SignatureError{Signature: signature}
	}

	field := naming.ToSnake(m[4])
	if field == "" {
		return Intent{}, &SignatureError{Signature: signature}
	}

	intent := Intent{
		Operation: SingleResult,
		Field:     field,
	}
	if m[1] == "get" {
		intent.Operation = MultiResult
	}

	switch m[2] {
	case "Latest":
		intent.Recency = Latest
	case "Oldest":
		intent.Recency = Oldest
	}

	if m[3] != "" {
		limit, err := strconv.Atoi(m[3])
		if err != nil {
			return Intent{}, &SignatureError{Signature: signature}
		}
		if intent.Operation == MultiResult {
			intent.Limit = limit
		}
	}

	return intent, nil
}

// MustParse is like Parse but panics on an unrecognized signature.
// It is intended for package-level finder declarations.
func MustParse(signature string) Intent {
	intent, err := Parse(signature)
	if err != nil {
		panic(err)
	}
	return intent
}
