package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// FlexString decodes from a JSON string, number or null.
// The backend serialises user ids and phone numbers as integers.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// Identity is the flat, client-side copy of the authoritative doctor profile.
type Identity struct {
	ID             FlexString `json:"id"`
	Username       string     `json:"username,omitempty"`
	Email          string     `json:"email,omitempty"`
	FirstName      string     `json:"first_name,omitempty"`
	LastName       string     `json:"last_name,omitempty"`
	Hospital       string     `json:"hospital,omitempty"`
	Specialty      string     `json:"specialty,omitempty"`
	Role           string     `json:"role,omitempty"`
	LicenseNumber  string     `json:"license_number,omitempty"`
	ProfilePicture string     `json:"profile_picture,omitempty"`
	PhoneNumber    FlexString `json:"phone_number,omitempty"`
}

// Clone returns a copy of the identity, or nil for a nil receiver.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	cp := *i
	return &cp
}

// DisplayName returns "First Last", falling back to the username.
func (i Identity) DisplayName() string {
	switch {
	case i.FirstName != "" && i.LastName != "":
		return i.FirstName + " " + i.LastName
	case i.FirstName != "":
		return i.FirstName
	case i.LastName != "":
		return i.LastName
	default:
		return i.Username
	}
}

// nestedIdentityKeys are the envelopes the backend wraps profile fields in.
// Login and signup put doctor fields under "doctor"; /doctors/me/ puts user fields under "user".
var nestedIdentityKeys = []string{"user", "doctor"}

// ErrNotAnObject is returned when an identity payload is not a JSON object.
var ErrNotAnObject = errors.New("identity payload is not a JSON object")

// FlattenIdentity normalises either backend identity shape into one flat key set.
// Fields lifted from nested envelopes are overridden by top-level scalars.
func FlattenIdentity(data []byte) (map[string]json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAnObject, err)
	}
	if top == nil {
		return nil, ErrNotAnObject
	}

	flat := make(map[string]json.RawMessage, len(top))
	for _, key := range nestedIdentityKeys {
		raw, ok := top[key]
		if !ok {
			continue
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil || inner == nil {
			continue
		}
		for k, v := range inner {
			flat[k] = v
		}
	}
	for k, v := range top {
		if isNestedKey(k) && isObject(v) {
			continue
		}
		flat[k] = v
	}
	return flat, nil
}

// ParseIdentity decodes an identity from either backend shape.
func ParseIdentity(data []byte) (Identity, error) {
	flat, err := FlattenIdentity(data)
	if err != nil {
		return Identity{}, err
	}
	return decodeFlat(flat)
}

// Merge applies a server response onto the identity as a shallow merge.
// Keys present in the response win (an explicit null resets the field); absent keys are retained.
func (i Identity) Merge(response []byte) (Identity, error) {
	patch, err := FlattenIdentity(response)
	if err != nil {
		return i, err
	}

	base, err := i.flat()
	if err != nil {
		return i, err
	}
	for k, v := range patch {
		if isNull(v) {
			delete(base, k)
			continue
		}
		base[k] = v
	}
	return decodeFlat(base)
}

func (i Identity) flat() (map[string]json.RawMessage, error) {
	b, err := json.Marshal(i)
	if err != nil {
		return nil, fmt.Errorf("marshal identity: %w", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal identity: %w", err)
	}
	return m, nil
}

func decodeFlat(flat map[string]json.RawMessage) (Identity, error) {
	b, err := json.Marshal(flat)
	if err != nil {
		return Identity{}, fmt.Errorf("marshal identity fields: %w", err)
	}
	var id Identity
	if err := json.Unmarshal(b, &id); err != nil {
		return Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	return id, nil
}

func isNestedKey(k string) bool {
	for _, n := range nestedIdentityKeys {
		if n == k {
			return true
		}
	}
	return false
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// ParseUserID normalises a user id claim of any JSON scalar type.
func ParseUserID(v any) (FlexString, bool) {
	switch t := v.(type) {
	case string:
		return FlexString(t), t != ""
	case float64:
		return FlexString(strconv.FormatFloat(t, 'f', -1, 64)), true
	case json.Number:
		return FlexString(t.String()), true
	case int64:
		return FlexString(strconv.FormatInt(t, 10)), true
	case int:
		return FlexString(strconv.Itoa(t)), true
	default:
		return "", false
	}
}
