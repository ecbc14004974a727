// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

// Recorder receives request and guard metrics.
type Recorder interface {
	RecordRequest(route string, status int)
	RecordGuardDecision(decision string)
	RecordTokenRotation()
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(string, int)  {}
func (nopRecorder) RecordGuardDecision(string) {}
func (nopRecorder) RecordTokenRotation()       {}
