package extract

import (
	"errors"
	"fmt"
)

// Kind classifies why raw model text failed to yield a validated record.
type Kind int

const (
	KindNone Kind = iota
	// KindNoJSON: no object span found anywhere in the text.
	KindNoJSON
	// KindMalformed: an object span was found but stayed unparseable after
	// every repair heuristic.
	KindMalformed
	// KindSchema: valid JSON that is missing or mistypes a required field.
	KindSchema
)

func (k Kind) String() string {
	switch k {
	case KindNoJSON:
		return "no_json_found"
	case KindMalformed:
		return "malformed_json"
	case KindSchema:
		return "schema_violation"
	default:
		return "none"
	}
}

// Error is the extractor's typed failure. Field is set for schema violations.
type Error struct {
	Kind  Kind
	Field string
	msg   string
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.msg != "":
		return fmt.Sprintf("%s: field %q: %s", e.Kind, e.Field, e.msg)
	case e.Field != "":
		return fmt.Sprintf("%s: field %q", e.Kind, e.Field)
	case e.msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.msg)
	default:
		return e.Kind.String()
	}
}

func errNoJSON() *Error {
	return &Error{Kind: KindNoJSON, msg: "no JSON object in model output"}
}

func errMalformed(detail string) *Error {
	return &Error{Kind: KindMalformed, msg: detail}
}

func errSchema(field, detail string) *Error {
	return &Error{Kind: KindSchema, Field: field, msg: detail}
}

// KindOf reports the failure kind of err, or KindNone for nil/foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}
