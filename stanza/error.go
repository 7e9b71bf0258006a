// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stanza

import (
	"errors"
	"fmt"
)

// Error is a server-reported stanza error. Callers can use errors.As
// to extract the structured information:
//
//	var stanzaErr *stanza.Error
//	if errors.As(err, &stanzaErr) {
//	    if stanzaErr.Condition == stanza.ConditionItemNotFound { ... }
//	}
type Error struct {
	// Condition is the defined condition element name (e.g.,
	// "item-not-found", "forbidden").
	Condition string

	// Type is the error type ("cancel", "modify", "auth", "wait").
	Type string

	// Text is the optional human-readable description.
	Text string

	// ID and From identify the stanza that failed.
	ID   string
	From string
}

func (e *Error) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("stanza: %s (%s): %s", e.Condition, e.Type, e.Text)
	}
	return fmt.Sprintf("stanza: %s (%s)", e.Condition, e.Type)
}

// Defined error conditions the engine inspects.
const (
	ConditionBadRequest         = "bad-request"
	ConditionFeatureNotImpl     = "feature-not-implemented"
	ConditionForbidden          = "forbidden"
	ConditionItemNotFound       = "item-not-found"
	ConditionNotAllowed         = "not-allowed"
	ConditionRemoteServer       = "remote-server-not-found"
	ConditionServiceUnavailable = "service-unavailable"
	ConditionUndefined          = "undefined-condition"
)

// IsStanzaError checks whether err is a *Error with the given
// condition.
func IsStanzaError(err error, condition string) bool {
	var stanzaErr *Error
	if errors.As(err, &stanzaErr) {
		return stanzaErr.Condition == condition
	}
	return false
}

// Err returns the stanza's error as a *Error, or nil when the stanza
// is not of type "error".
func (s *Stanza) Err() error {
	if s.Type != TypeError {
		return nil
	}
	result := &Error{
		Condition: ConditionUndefined,
		ID:        s.ID,
		From:      s.From,
	}
	if s.Error == nil {
		return result
	}
	result.Type = s.Error.Type
	result.Text = s.Error.Text
	for _, condition := range s.Error.Conditions {
		if condition.XMLName.Space == NSStanzas || condition.XMLName.Space == "" {
			result.Condition = condition.XMLName.Local
			break
		}
	}
	return result
}
