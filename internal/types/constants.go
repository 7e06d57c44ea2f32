// Package types provides type-safe constants for the launcher update system.
//
// This package centralizes the enumerated types shared by the update engine,
// the command layer and the status output, replacing magic strings with typed
// constants that provide compile-time safety and validation methods.
package types

import (
	"fmt"
	"strings"
)

// Stage represents a step of the update apply cycle.
type Stage string

const (
	// StageIdle indicates no apply cycle is running.
	StageIdle Stage = "idle"
	// StageDownloading indicates the update archive is being fetched.
	StageDownloading Stage = "downloading"
	// StageBackingUp indicates the tracked installation files are being snapshotted.
	StageBackingUp Stage = "backing-up"
	// StageExtracting indicates the archive is being extracted over the installation.
	StageExtracting Stage = "extracting"
	// StageCleaningUp indicates temporary files and the pending record are being removed.
	StageCleaningUp Stage = "cleaning-up"
	// StageDone indicates the update was applied successfully.
	StageDone Stage = "done"
	// StageFailed indicates the cycle ended with an error.
	StageFailed Stage = "failed"
)

// stageTransitions lists the legal successors of each stage.
var stageTransitions = map[Stage][]Stage{
	StageIdle:        {StageDownloading},
	StageDownloading: {StageBackingUp, StageFailed},
	StageBackingUp:   {StageExtracting, StageFailed},
	StageExtracting:  {StageCleaningUp, StageFailed},
	StageCleaningUp:  {StageDone},
	StageDone:        {StageIdle},
	StageFailed:      {StageIdle},
}

// AllStages returns all valid stages in cycle order.
func AllStages() []Stage {
	return []Stage{
		StageIdle,
		StageDownloading,
		StageBackingUp,
		StageExtracting,
		StageCleaningUp,
		StageDone,
		StageFailed,
	}
}

// Validate checks if the Stage is a valid value.
func (s Stage) Validate() error {
	if _, ok := stageTransitions[s]; ok {
		return nil
	}
	if s == "" {
		return fmt.Errorf("stage is required")
	}
	return fmt.Errorf("invalid stage '%s'", s)
}

// String returns the string representation of the Stage.
func (s Stage) String() string {
	return string(s)
}

// IsTerminal returns true if the stage ends an apply cycle.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Stage) CanTransitionTo(next Stage) bool {
	for _, candidate := range stageTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseStage parses a string into a Stage.
// Returns an error if the string is not a valid stage.
func ParseStage(s string) (Stage, error) {
	stage := Stage(strings.ToLower(strings.TrimSpace(s)))
	if err := stage.Validate(); err != nil {
		return "", err
	}
	return stage, nil
}

// EventKind represents the type of an update event.
type EventKind string

const (
	// EventStatus carries a human-readable status line.
	EventStatus EventKind = "status"
	// EventProgress carries a percentage in the range 0..100.
	EventProgress EventKind = "progress"
	// EventStage announces a stage transition of the apply cycle.
	EventStage EventKind = "stage"
	// EventUpdateAvailable announces a newer remote version and its changelog.
	EventUpdateAvailable EventKind = "update-available"
	// EventFinished ends a user-visible operation with success or failure.
	EventFinished EventKind = "finished"
)

// AllEventKinds returns all valid event kinds.
func AllEventKinds() []EventKind {
	return []EventKind{EventStatus, EventProgress, EventStage, EventUpdateAvailable, EventFinished}
}

// Validate checks if the EventKind is a valid value.
func (k EventKind) Validate() error {
	switch k {
	case EventStatus, EventProgress, EventStage, EventUpdateAvailable, EventFinished:
		return nil
	case "":
		return fmt.Errorf("event kind is required")
	default:
		return fmt.Errorf("invalid event kind '%s' (must be status, progress, stage, update-available, or finished)", k)
	}
}

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// ParseEventKind parses a string into an EventKind.
// Returns an error if the string is not a valid event kind.
func ParseEventKind(s string) (EventKind, error) {
	kind := EventKind(strings.ToLower(strings.TrimSpace(s)))
	if err := kind.Validate(); err != nil {
		return "", err
	}
	return kind, nil
}
