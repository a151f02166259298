// Package authsession manages the Langua credential lifecycle: acquiring a
// session through password, signup, or social sign-in, verifying it at boot,
// refreshing it when the backend reports expiry, and revoking it on logout.
// It separates session semantics from storage and identity-provider
// concerns, enabling reuse across CLI tools, daemons, and embedded clients.
//
// The manager never logs a user out because of a network outage: when boot
// verification cannot get an authoritative answer from the backend, the
// stored credential is kept and the session is marked authenticated but
// unverified.
package authsession
