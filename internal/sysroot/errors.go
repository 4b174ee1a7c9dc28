package sysroot

import (
	"errors"
	"fmt"
)

// Pipeline stages, used to label fatal errors.
const (
	StageClean   = "clean"
	StageResolve = "resolve"
	StageURIs    = "uris"
	StageFetch   = "fetch"
	StageExtract = "extract"
	StageBundle  = "bundle"
	StagePublish = "publish"
)

// ErrUnknownPayload is returned when a package carries none of the supported data payloads.
var ErrUnknownPayload = errors.New("unknown package format: no supported data payload")

// StageError is a fatal pipeline error tied to a stage and the package or URI being processed.
type StageError struct {
	Stage   string
	Subject string
	Err     error
}

func (e *StageError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Subject, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage, subject string, err error) error {
	return &StageError{Stage: stage, Subject: subject, Err: err}
}
