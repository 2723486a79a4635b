// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memtest

import (
	"fmt"
	"io"

	"github.com/google/memboot/efi"
)

// Outcome is the verdict for a region or a single pattern pass.
type Outcome int

const (
	Passed Outcome = iota
	Failed
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "PASS"
	case Failed:
		return "FAIL"
	case Skipped:
		return "SKIPPED"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result is the outcome of testing a range.
//
// For a failure, Offset is the byte offset of the first mismatching word
// from the start of the range, Expected the pattern written and Actual the
// value read back. For a skipped region, Reason says why.
type Result struct {
	Outcome  Outcome
	Offset   uint64
	Expected uint32
	Actual   uint32
	Reason   error
}

// Pass returns a passing result.
func Pass() Result {
	return Result{Outcome: Passed}
}

// FailAt returns a failing result for the word at offset.
func FailAt(offset uint64, expected, actual uint32) Result {
	return Result{Outcome: Failed, Offset: offset, Expected: expected, Actual: actual}
}

// SkippedFor returns the result for a region that could not be tested.
func SkippedFor(reason error) Result {
	return Result{Outcome: Skipped, Reason: reason}
}

func (r Result) String() string {
	switch r.Outcome {
	case Failed:
		return fmt.Sprintf("FAIL at offset 0x%x: expected 0x%08x, got 0x%08x", r.Offset, r.Expected, r.Actual)
	case Skipped:
		return fmt.Sprintf("SKIPPED: %v", r.Reason)
	}
	return r.Outcome.String()
}

// Report is the validation outcome for one region.
type Report struct {
	Region efi.Region
	// TestedBytes is the size of the range handed to the verifier, zero
	// when the region was skipped.
	TestedBytes uint64
	// Patterns lists the patterns run, in order, including a failing one.
	Patterns []uint32
	Result   Result
}

// Reports is the aggregate outcome of a validation run, in memory map order.
type Reports []Report

// AllPassed returns true if no region failed verification. Skipped regions
// do not count as failures.
func (rs Reports) AllPassed() bool {
	return len(rs.Failed()) == 0
}

// Failed returns the reports of the regions which failed verification.
func (rs Reports) Failed() Reports {
	return rs.with(Failed)
}

// Skipped returns the reports of the regions which could not be reserved.
func (rs Reports) Skipped() Reports {
	return rs.with(Skipped)
}

func (rs Reports) with(o Outcome) Reports {
	var r Reports
	for _, rep := range rs {
		if rep.Result.Outcome == o {
			r = append(r, rep)
		}
	}
	return r
}

// TestedBytes returns the number of bytes handed to the verifier.
func (rs Reports) TestedBytes() uint64 {
	var n uint64
	for _, rep := range rs {
		n += rep.TestedBytes
	}
	return n
}

// Write prints a summary of the run.
func (rs Reports) Write(w io.Writer) error {
	for _, rep := range rs {
		if _, err := fmt.Fprintf(w, "0x%016x %8d pages: %s\n", rep.Region.PhysicalStart, rep.Region.NumberOfPages, rep.Result); err != nil {
			return err
		}
	}
	status := "PASS - All memory tests completed successfully!"
	if !rs.AllPassed() {
		status = "FAIL - Memory errors detected!"
	}
	_, err := fmt.Fprintf(w, "Status: %s\nRegions: %d tested, %d failed, %d skipped\nTotal Memory Tested: %d KB\n",
		status, len(rs)-len(rs.Skipped()), len(rs.Failed()), len(rs.Skipped()), rs.TestedBytes()/1024)
	return err
}
