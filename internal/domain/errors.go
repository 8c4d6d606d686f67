package domain

import "github.com/victornm/scamquiz/internal/errors"

const (
	ReasonInvalidSignature     = "INVALID_SIGNATURE"
	ReasonNoActiveQuestion     = "NO_ACTIVE_QUESTION"
	ReasonAlreadyAnswered      = "ALREADY_ANSWERED"
	ReasonConcurrentSubmission = "CONCURRENT_SUBMISSION"
	ReasonGenerationFailed     = "GENERATION_FAILED"
	ReasonAnalysisFailed       = "ANALYSIS_FAILED"
	ReasonStoreUnavailable     = "STORE_UNAVAILABLE"
	ReasonDeliveryFailed       = "DELIVERY_FAILED"
	ReasonSessionNotFound      = "SESSION_NOT_FOUND"
	ReasonMalformedRecord      = "MALFORMED_RECORD"
)

var (
	ErrInvalidSignature = errors.New(errors.CodeUnauthenticated,
		errors.WithReason(ReasonInvalidSignature), errors.WithMessagef("invalid webhook signature"))

	ErrNoActiveQuestion = errors.New(errors.CodeFailedPrecondition,
		errors.WithReason(ReasonNoActiveQuestion), errors.WithMessagef("no active question"))

	// ErrAlreadyAnswered is returned when the session was already scored when it was read.
	ErrAlreadyAnswered = errors.New(errors.CodeAlreadyExists,
		errors.WithReason(ReasonAlreadyAnswered), errors.WithMessagef("question already answered"))

	// ErrConcurrentSubmission is returned to the submission that lost the answered-flag race.
	// It always wraps ErrAlreadyAnswered.
	ErrConcurrentSubmission = errors.New(errors.CodeAborted,
		errors.WithReason(ReasonConcurrentSubmission), errors.WithMessagef("question answered by a concurrent submission"))

	ErrGenerationFailed = errors.New(errors.CodeUnavailable,
		errors.WithReason(ReasonGenerationFailed), errors.WithMessagef("example generation failed"))

	ErrAnalysisFailed = errors.New(errors.CodeUnavailable,
		errors.WithReason(ReasonAnalysisFailed), errors.WithMessagef("analysis failed"))

	ErrStoreUnavailable = errors.New(errors.CodeUnavailable,
		errors.WithReason(ReasonStoreUnavailable), errors.WithMessagef("store unavailable"))

	ErrDeliveryFailed = errors.New(errors.CodeUnavailable,
		errors.WithReason(ReasonDeliveryFailed), errors.WithMessagef("reply delivery failed"))

	ErrSessionNotFound = errors.New(errors.CodeNotFound,
		errors.WithReason(ReasonSessionNotFound), errors.WithMessagef("session not found"))

	ErrMalformedRecord = errors.New(errors.CodeDataLoss,
		errors.WithReason(ReasonMalformedRecord), errors.WithMessagef("malformed record"))
)
