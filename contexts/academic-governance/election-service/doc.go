// Package electionservice implements class elections inside the
// academic-governance context.
//
// It owns the election lifecycle (create, vote, close, delete), the CR vote
// tally and the class-representative role transition applied when an
// election closes with a clear winner. Closing runs the tally and the role
// change inside one storage transaction; events leave through an outbox.
package electionservice
