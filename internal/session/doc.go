// Package session is the relay's registry of pairing sessions.
//
// A session is created empty under a fresh unguessable identifier, accepts at
// most two participants and is deleted as a whole as soon as either of them
// leaves. Sessions nobody ever joins are reclaimed by Sweep after a grace
// period.
package session
