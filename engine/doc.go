// Package engine runs test groups and their test cases through their life
// phases.
//
// A GroupContext and a CaseContext each own a phase map of processors, an
// accumulator and an optional overriding result. Running a context walks its
// flavor's phases in order (see package phase). Within a phase the engine
// repeatedly sweeps the dependency-sorted processors, executing each one
// that reports Ready, until a sweep executes nothing.
//
// # Control flow
//
// A processor may ask to come back to its phase once a later phase has
// converged (BackToPhaseAfter). The engine records the request and, when the
// later phase completes, moves the cursor back instead of advancing.
//
// A processor returning NotApplicable stops the context: no further phases
// run and the context's verdict becomes an inapplicable result. Any other
// error returned by a processor is fatal to the run and is reported as a
// *ProcessorError. At test case granularity the group's running-testcases
// processor contains such errors and records a failed case instead.
//
// # Concurrency
//
// A context tree belongs to a single run and is driven by one goroutine.
// Nothing in this package is safe for concurrent use.
package engine
