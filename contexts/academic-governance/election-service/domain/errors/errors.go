package errors

import "errors"

var (
	ErrUnauthenticated        = errors.New("unauthorized access, please login to continue")
	ErrForbidden              = errors.New("you are not authorised to manage elections")
	ErrVoterNotEligible       = errors.New("you are not allowed to vote in this election")
	ErrInvalidElectionInput   = errors.New("title, class, branch and academic year are required")
	ErrInvalidCandidateCount  = errors.New("elections require between 2 and 8 candidates")
	ErrCandidateClassMismatch = errors.New("candidates must belong to the election class")
	ErrInvalidCandidateID     = errors.New("invalid candidate id")
	ErrInvalidElectionID      = errors.New("invalid election id")
	ErrInvalidElectionFilter  = errors.New("invalid election status filter")
	ErrElectionNotFound       = errors.New("election not found")
	ErrCandidateNotFound      = errors.New("candidate not found in this election")
	ErrStudentNotFound        = errors.New("one or more candidates not found")
	ErrElectionClosed         = errors.New("election has already been closed")
	ErrAlreadyVoted           = errors.New("you have already voted in this election")
	ErrWinnerClassMismatch    = errors.New("winner does not belong to the election class")
	ErrIdempotencyConflict    = errors.New("idempotency key conflict")
	ErrIdempotencyKeyTaken    = errors.New("idempotency key already claimed")
	ErrConflict               = errors.New("election conflict")
	ErrTransactionAborted     = errors.New("election transaction aborted")
)
