// Package entitlement keeps a subscriber's usage snapshot fresh on the client
// and decides, from that snapshot, whether another conversation turn may be
// sent.
//
// The decision rules themselves live in package domain as pure predicates.
// This package owns everything around them: fetching snapshots from the
// backend of record (or the offline simulator), ordering overlapping
// refreshes, classifying fetch failures and polling while the session is in
// the foreground.
package entitlement

import (
	"errors"
	"fmt"

	"github.com/DukeRupert/ohscentric/internal/domain"
)

// Outcome is the result of one usage fetch. It is one of Success,
// ConnectivityFailure, AuthFailure or MalformedResponse.
type Outcome interface {
	outcome()
	fmt.Stringer
}

// Success carries a freshly fetched snapshot.
type Success struct {
	Record domain.UsageRecord
}

// ConnectivityFailure means the usage endpoint was unreachable, timed out or
// answered with a non-2xx status other than an authentication rejection.
type ConnectivityFailure struct {
	Err error
}

// AuthFailure means no credential was available or the backend rejected it.
type AuthFailure struct {
	Err error
}

// MalformedResponse means the endpoint answered but the body failed
// decoding or validation.
type MalformedResponse struct {
	Err error
}

func (Success) outcome()             {}
func (ConnectivityFailure) outcome() {}
func (AuthFailure) outcome()         {}
func (MalformedResponse) outcome()   {}

func (o Success) String() string {
	return fmt.Sprintf("success (plan=%s used=%d/%d)", o.Record.Plan, o.Record.ChatsUsedToday, o.Record.DailyLimit)
}

func (o ConnectivityFailure) String() string { return "connectivity failure: " + errString(o.Err) }
func (o AuthFailure) String() string         { return "auth failure: " + errString(o.Err) }
func (o MalformedResponse) String() string   { return "malformed response: " + errString(o.Err) }

func (o ConnectivityFailure) Unwrap() error { return o.Err }
func (o AuthFailure) Unwrap() error         { return o.Err }
func (o MalformedResponse) Unwrap() error   { return o.Err }

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// ErrNoCredential is reported when a refresh is requested without a
// credential.
var ErrNoCredential = errors.New("no credential")

// ErrSessionClosed is reported when a refresh is requested after Close.
var ErrSessionClosed = errors.New("entitlement session closed")

// Err returns the error carried by a failure outcome, or nil for Success.
func Err(o Outcome) error {
	switch o := o.(type) {
	case Success:
		return nil
	case ConnectivityFailure:
		return o.Err
	case AuthFailure:
		return o.Err
	case MalformedResponse:
		return o.Err
	default:
		panic(fmt.Sprintf("entitlement: unexpected outcome %T", o))
	}
}
