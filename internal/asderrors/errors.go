// Package asderrors defines the error taxonomy shared across the ASD core.
// Components wrap a Kind with the underlying cause so callers can branch on
// errors.Is/errors.As without depending on package-private sentinel values.
package asderrors

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure from spec.md's error taxonomy table.
type Kind int

const (
	// InvalidVideoBufferAmount is a fatal configuration error raised by pool
	// initialization when numVideoBuffers is non-positive.
	InvalidVideoBufferAmount Kind = iota
	// InvalidASDModelAmount is a fatal configuration error raised by pool
	// initialization when numASDModels is non-positive.
	InvalidASDModelAmount
	// RegressingTimestamp is fatal within the pipeline: advance_frame was
	// called with a timestamp older than the last observed one.
	RegressingTimestamp
	// WriteFailedOutdatedSegment indicates a ScoreStream write targeted a
	// frame range already behind the stream's tail; an internal invariant
	// break, logged and skipped rather than propagated.
	WriteFailedOutdatedSegment
	// MergeFailedNoAdjacentScores is returned by ScoreSegment merge
	// operators when two segments are not adjacent or overlapping.
	MergeFailedNoAdjacentScores
	// IntersectionFailedNoIntersection is returned by ScoreSegment
	// intersection operators when two segments share no frames.
	IntersectionFailedNoIntersection
	// RLAPInvalidCostMatrix is logged when the tracker builds a malformed
	// cost matrix (length not rows*cols, or NaN entries) before solving.
	RLAPInvalidCostMatrix
	// RLAPInfeasible is logged when the solver cannot find a feasible
	// assignment for the given cost matrix.
	RLAPInfeasible
	// RLAPUnknown covers any other non-zero solver exit code.
	RLAPUnknown
	// MissingEmbedding means a detection lacks an embedding and cannot seed
	// a new track this frame.
	MissingEmbedding
	// ImagePreprocessUnsupportedFormat means the pixel buffer format could
	// not be converted for cropping.
	ImagePreprocessUnsupportedFormat
	// LockFailed means the buffer pool's lock could not be acquired for a
	// write (reserved for future non-blocking lock strategies).
	LockFailed
	// ResizeFailed means the crop resample step failed.
	ResizeFailed
	// GrayscaleFailed means RGB-to-grayscale conversion failed.
	GrayscaleFailed
	// ConvertFailed means the float32 normalization step failed.
	ConvertFailed
)

func (k Kind) String() string {
	switch k {
	case InvalidVideoBufferAmount:
		return "invalid_video_buffer_amount"
	case InvalidASDModelAmount:
		return "invalid_asd_model_amount"
	case RegressingTimestamp:
		return "regressing_timestamp"
	case WriteFailedOutdatedSegment:
		return "write_failed_outdated_segment"
	case MergeFailedNoAdjacentScores:
		return "merge_failed_no_adjacent_scores"
	case IntersectionFailedNoIntersection:
		return "intersection_failed_no_intersection"
	case RLAPInvalidCostMatrix:
		return "rlap_invalid_cost_matrix"
	case RLAPInfeasible:
		return "rlap_infeasible"
	case RLAPUnknown:
		return "rlap_unknown"
	case MissingEmbedding:
		return "missing_embedding"
	case ImagePreprocessUnsupportedFormat:
		return "image_preprocess_unsupported_format"
	case LockFailed:
		return "lock_failed"
	case ResizeFailed:
		return "resize_failed"
	case GrayscaleFailed:
		return "grayscale_failed"
	case ConvertFailed:
		return "convert_failed"
	default:
		return "unknown"
	}
}

// Error pairs a Kind with an optional wrapped cause and component context.
type Error struct {
	Kind      Kind
	Component string
	Cause     error
}

// New creates an Error with no wrapped cause.
func New(kind Kind, component string) *Error {
	return &Error{Kind: kind, Component: component}
}

// Wrap creates an Error wrapping cause.
func Wrap(kind Kind, component string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Kind)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, asderrors.New(asderrors.RegressingTimestamp, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// Fatal reports whether the Kind must surface to the caller rather than be
// absorbed locally, per spec.md §7's propagation policy.
func (k Kind) Fatal() bool {
	switch k {
	case InvalidVideoBufferAmount, InvalidASDModelAmount, RegressingTimestamp:
		return true
	default:
		return false
	}
}
