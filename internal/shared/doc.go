// Package shared holds helpers used across packages that belong to no
// single layer.
//
// The testutil subpackage provides:
//
//   - a buffered slog handler for asserting on log output
//   - sample sales histories and model artifacts
//   - a stub model for service and handler tests
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    path := testutil.WriteArtifact(t, testutil.SampleLinearArtifact())
//	    ...
//	    testutil.AssertNoErrors(t, logs)
//	}
package shared
