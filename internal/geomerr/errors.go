// Package geomerr defines the failure taxonomy shared by the Geometry2D pipeline.
//
// Every package wraps one of the sentinels below with github.com/pkg/errors so the
// host boundary can report a stable kind next to the human-readable message.
package geomerr

import (
	"github.com/pkg/errors"
)

// Kind names a class of pipeline failure.
type Kind string

// Failure kinds reported to callers.
const (
	KindDegenerateRoi             Kind = "DegenerateRoi"
	KindInvalidSearchConfig       Kind = "InvalidSearchConfig"
	KindInsufficientBosses        Kind = "InsufficientBosses"
	KindMissingUpstreamArtifact   Kind = "MissingUpstreamArtifact"
	KindNoTemplateVariantsEnabled Kind = "NoTemplateVariantsEnabled"
	KindInvalidInput              Kind = "InvalidInput"
	KindInternal                  Kind = "Internal"
)

var (
	// ErrDegenerateRoi is returned when an ROI has zero (or non-finite) width or height.
	ErrDegenerateRoi = errors.New("roi width/height cannot be zero")

	// ErrInvalidSearchConfig is returned for non-positive steps or negative ranges.
	ErrInvalidSearchConfig = errors.New("invalid search configuration")

	// ErrInsufficientBosses is returned when a stage needs more bosses than it has.
	ErrInsufficientBosses = errors.New("insufficient bosses")

	// ErrMissingUpstreamArtifact is returned when an earlier stage has not produced
	// the ROI, the boss report or another required input yet.
	ErrMissingUpstreamArtifact = errors.New("missing upstream artifact")

	// ErrNoTemplateVariantsEnabled is returned when every template family is disabled.
	ErrNoTemplateVariantsEnabled = errors.New("at least one cut-typology family must be enabled")

	// ErrInvalidInput covers malformed caller input (bad ids, unknown variants).
	ErrInvalidInput = errors.New("invalid input")
)

// KindOf classifies err by the sentinel at the root of its wrap chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	switch errors.Cause(err) {
	case ErrDegenerateRoi:
		return KindDegenerateRoi
	case ErrInvalidSearchConfig:
		return KindInvalidSearchConfig
	case ErrInsufficientBosses:
		return KindInsufficientBosses
	case ErrMissingUpstreamArtifact:
		return KindMissingUpstreamArtifact
	case ErrNoTemplateVariantsEnabled:
		return KindNoTemplateVariantsEnabled
	case ErrInvalidInput:
		return KindInvalidInput
	default:
		return KindInternal
	}
}

// Failure is the structured form of an error handed back across the tool boundary.
type Failure struct {
	Success bool   `json:"success"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// AsFailure converts err into a Failure payload.
func AsFailure(err error) Failure {
	return Failure{Success: false, Kind: KindOf(err), Message: err.Error()}
}
