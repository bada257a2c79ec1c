package storage

import (
	"sort"

	"go.uber.org/multierr"
)

// Outcome summarises a multi-step storage call.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// StepResult is the outcome of one remote primitive against one path.
type StepResult struct {
	Path string
	// Err is a failure that affects the caller.
	Err error
	// Ignored is a tolerated failure, such as deleting an object that does not exist.
	Ignored error
}

// OK reports whether the step succeeded or only failed in a tolerated way.
func (s StepResult) OK() bool {
	return s.Err == nil
}

// WriteResult describes a Put call.
type WriteResult struct {
	Path       string
	Original   StepResult
	Thumbnails map[string]StepResult
}

// OK reports whether the original object was stored. Thumbnail failures do not count.
func (r *WriteResult) OK() bool {
	return r != nil && r.Original.OK()
}

// Outcome is success when every step succeeded, partial when only thumbnails failed
// and failure when the original was not stored.
func (r *WriteResult) Outcome() Outcome {
	if r == nil {
		return OutcomeFailure
	}
	return outcomeOf(r.Original, r.Thumbnails)
}

// Err combines the failures of every step.
func (r *WriteResult) Err() error {
	if r == nil {
		return nil
	}
	return combine(r.Original, r.Thumbnails)
}

// DeleteResult describes a Remove call.
type DeleteResult struct {
	Path       string
	Original   StepResult
	Thumbnails map[string]StepResult
}

// OK reports whether the original object is gone. A missing object counts as removed.
func (r *DeleteResult) OK() bool {
	return r != nil && r.Original.OK()
}

// Outcome mirrors WriteResult.Outcome.
func (r *DeleteResult) Outcome() Outcome {
	if r == nil {
		return OutcomeFailure
	}
	return outcomeOf(r.Original, r.Thumbnails)
}

// Err combines the failures of every step.
func (r *DeleteResult) Err() error {
	if r == nil {
		return nil
	}
	return combine(r.Original, r.Thumbnails)
}

// Ignored lists the paths whose failure was tolerated.
func (r *DeleteResult) Ignored() []string {
	if r == nil {
		return nil
	}
	var out []string
	if r.Original.Ignored != nil {
		out = append(out, r.Original.Path)
	}
	for _, key := range sortedKeys(r.Thumbnails) {
		if step := r.Thumbnails[key]; step.Ignored != nil {
			out = append(out, step.Path)
		}
	}
	return out
}

func outcomeOf(original StepResult, thumbs map[string]StepResult) Outcome {
	if !original.OK() {
		return OutcomeFailure
	}
	for _, step := range thumbs {
		if !step.OK() {
			return OutcomePartial
		}
	}
	return OutcomeSuccess
}

func combine(original StepResult, thumbs map[string]StepResult) error {
	err := original.Err
	for _, key := range sortedKeys(thumbs) {
		err = multierr.Append(err, thumbs[key].Err)
	}
	return err
}

func sortedKeys(m map[string]StepResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
