// Package testing provides a standardised test suite for implementations
// of the claimstore.IClaimStore interface.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(dir string) (claimstore.IClaimStore, error) {
//		return NewMyStore(dir)
//	}
//
//	// Running the standard test suite
//	testing.RunClaimStoreTests(t, "MyStore", factory)
package testing
