package jwtx

import (
	"errors"
	"fmt"
)

// Subject payload keys.
const (
	ClaimType    = "type"
	ClaimSubject = "sub"
)

// SubjectTypeUser is the only subject type currently issued.
const SubjectTypeUser = "user"

// Schema validates a decoded payload. It receives the payload with the
// reserved claims already removed.
type Schema func(Payload) error

// SubjectPayload builds the payload identifying a user.
func SubjectPayload(userID int64) Payload {
	return Payload{
		ClaimType:    SubjectTypeUser,
		ClaimSubject: userID,
	}
}

// SubjectSchema accepts exactly {type: "user", sub: <integer>}.
func SubjectSchema(p Payload) error {
	if len(p) != 2 {
		return fmt.Errorf("expected exactly %q and %q, got %d keys", ClaimType, ClaimSubject, len(p))
	}

	typ, ok := p[ClaimType].(string)
	if !ok {
		return errors.New("type must be a string")
	}
	if typ != SubjectTypeUser {
		return fmt.Errorf("unsupported subject type %q", typ)
	}

	if _, ok := p[ClaimSubject].(int64); !ok {
		return errors.New("sub must be an integer")
	}

	return nil
}

// SubjectID extracts the user id from a payload accepted by SubjectSchema.
func SubjectID(p Payload) (int64, error) {
	if err := SubjectSchema(p); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p[ClaimSubject].(int64), nil
}
