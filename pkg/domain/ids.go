// Package domain defines typed identifiers shared across modules.
//
// Each identifier wraps a UUID so a report id can never be passed where a
// submitter id is expected. Parse functions are the trust boundary: they
// reject empty, malformed and nil UUIDs with CodeInvalidInput.
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "crimewatch/pkg/domain-errors"
)

type (
	ReportID    uuid.UUID
	SubmitterID uuid.UUID
	SessionID   uuid.UUID
)

func (id ReportID) String() string    { return uuid.UUID(id).String() }
func (id SubmitterID) String() string { return uuid.UUID(id).String() }
func (id SessionID) String() string   { return uuid.UUID(id).String() }

func (id ReportID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SubmitterID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders ids as canonical UUID strings in JSON and logs.
func (id ReportID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id SubmitterID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id SessionID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *ReportID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SubmitterID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SessionID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }

func NewReportID() ReportID   { return ReportID(uuid.New()) }
func NewSessionID() SessionID { return SessionID(uuid.New()) }

func ParseReportID(s string) (ReportID, error) {
	u, err := parseUUID(s, "report")
	return ReportID(u), err
}

func ParseSubmitterID(s string) (SubmitterID, error) {
	u, err := parseUUID(s, "submitter")
	return SubmitterID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session")
	return SessionID(u), err
}

func parseUUID(s, kind string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	if !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be nil")
	}
	return u, nil
}
