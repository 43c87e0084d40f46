package protocol

// Limits to prevent resource exhaustion from malicious or broken frames.
const (
	// MaxFrameSize is the largest encoded frame accepted (4MB).
	MaxFrameSize = 4 * 1024 * 1024

	// MaxNodeDepth limits the nesting depth of subtrees.
	// 256 levels is sufficient for any reasonable document.
	MaxNodeDepth = 256

	// MaxCollectionCount is the maximum number of items in a decoded
	// collection (patch list, children, props).
	MaxCollectionCount = 100_000
)

// checkDepth is a convenience function for one-time depth checks.
func checkDepth(current, max int) error {
	if current > max {
		return ErrMaxDepthExceeded
	}
	return nil
}

// checkCount validates a decoded collection size.
func checkCount(n int) error {
	if n > MaxCollectionCount {
		return ErrCollectionTooLarge
	}
	return nil
}
