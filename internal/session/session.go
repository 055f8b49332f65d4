// Package session holds the per-clinician workflow state that lives between
// login and logout. Exactly one logical workflow runs per session, so no
// locking is needed.
package session

import (
	"time"

	"github.com/naheedk999/docai/internal/auth"
	"github.com/naheedk999/docai/internal/report"
)

// DoctorSettings is the clinician letterhead printed on exported reports.
type DoctorSettings struct {
	Name           string
	Specialization string
	Contact        string
	Email          string
}

// Session carries the bearer credential and the in-flight visit artifacts.
// Transcript and reports stay user-editable until export.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Email     string
	Language  string
	Doctor    DoctorSettings

	Transcript    string
	PatientReport *report.Report
	DoctorReport  *report.Report
}

// New creates a Session at login time.
func New(creds *auth.Credentials, email, language string) *Session {
	return &Session{
		Token:     creds.Token,
		ExpiresAt: creds.ExpiresAt,
		Email:     email,
		Language:  language,
	}
}

// Active reports whether the session holds a usable credential.
func (s *Session) Active() bool {
	return s.Token != "" && !s.Expired()
}

// Expired reports whether the credential is past its expiry. A zero expiry
// means the claim was unreadable and the token is trusted until rejected.
func (s *Session) Expired() bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(s.ExpiresAt)
}

// Clear wipes the session at logout.
func (s *Session) Clear() {
	*s = Session{}
}
