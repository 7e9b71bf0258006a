// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// maxPartLength is the maximum length of each JID part in bytes.
const maxPartLength = 1023

// localpartForbidden lists the characters that may not appear in the
// local part of a JID.
const localpartForbidden = "\"&'/:<>@"

// JID is a validated protocol address of the form
// [localpart@]domain[/resource] (e.g., "alice@chat.example/web").
//
// JID is an immutable value type. The zero value is not valid; use
// IsZero to check.
type JID struct {
	local    string
	domain   string
	resource string
}

// ParseJID validates and splits a raw address string. The resource is
// everything after the first '/', so resources may themselves contain
// '/' or '@'.
func ParseJID(raw string) (JID, error) {
	if raw == "" {
		return JID{}, fmt.Errorf("empty JID")
	}

	address := raw
	var resource string
	if slash := strings.IndexByte(address, '/'); slash >= 0 {
		resource = address[slash+1:]
		address = address[:slash]
		if resource == "" {
			return JID{}, fmt.Errorf("JID has empty resource: %q", raw)
		}
	}

	var local string
	domain := address
	if at := strings.IndexByte(address, '@'); at >= 0 {
		local = address[:at]
		domain = address[at+1:]
		if local == "" {
			return JID{}, fmt.Errorf("JID has empty localpart: %q", raw)
		}
	}

	if domain == "" {
		return JID{}, fmt.Errorf("JID has empty domain: %q", raw)
	}
	if strings.ContainsAny(domain, "@/ \t\r\n") {
		return JID{}, fmt.Errorf("JID domain contains invalid characters: %q", raw)
	}
	if strings.ContainsAny(local, localpartForbidden) || strings.ContainsAny(local, " \t\r\n") {
		return JID{}, fmt.Errorf("JID localpart contains invalid characters: %q", raw)
	}
	if len(local) > maxPartLength || len(domain) > maxPartLength || len(resource) > maxPartLength {
		return JID{}, fmt.Errorf("JID part exceeds %d bytes: %q", maxPartLength, raw)
	}

	return JID{
		local:    local,
		domain:   strings.ToLower(domain),
		resource: resource,
	}, nil
}

// MustParseJID is like ParseJID but panics on error. Use in tests and
// static initialization where the input is known-valid.
func MustParseJID(raw string) JID {
	j, err := ParseJID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseJID(%q): %v", raw, err))
	}
	return j
}

// Local returns the localpart (empty for server addresses).
func (j JID) Local() string { return j.local }

// Domain returns the domain part.
func (j JID) Domain() string { return j.domain }

// Resource returns the resource part (empty for bare JIDs).
func (j JID) Resource() string { return j.resource }

// IsZero reports whether the JID is the zero value (uninitialized).
func (j JID) IsZero() bool { return j.domain == "" }

// IsBare reports whether the JID has no resource.
func (j JID) IsBare() bool { return j.resource == "" }

// Bare returns the JID without its resource.
func (j JID) Bare() JID {
	return JID{local: j.local, domain: j.domain}
}

// WithResource returns a copy of the JID carrying the given resource.
func (j JID) WithResource(resource string) (JID, error) {
	if j.IsZero() {
		return JID{}, fmt.Errorf("WithResource called on zero JID")
	}
	if resource == "" {
		return j.Bare(), nil
	}
	if len(resource) > maxPartLength {
		return JID{}, fmt.Errorf("resource exceeds %d bytes", maxPartLength)
	}
	return JID{local: j.local, domain: j.domain, resource: resource}, nil
}

// String returns the full address.
func (j JID) String() string {
	if j.IsZero() {
		return ""
	}
	var builder strings.Builder
	if j.local != "" {
		builder.WriteString(j.local)
		builder.WriteByte('@')
	}
	builder.WriteString(j.domain)
	if j.resource != "" {
		builder.WriteByte('/')
		builder.WriteString(j.resource)
	}
	return builder.String()
}

// MarshalText implements encoding.TextMarshaler.
func (j JID) MarshalText() ([]byte, error) {
	return []byte(j.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value.
func (j *JID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*j = JID{}
		return nil
	}
	parsed, err := ParseJID(string(data))
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}
