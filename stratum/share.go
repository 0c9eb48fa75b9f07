package stratum

// Solution is a qualifying hash produced by a worker, ready for submission.
type Solution struct {
	JobID      string
	Nonce      uint32
	ResultHash [32]byte
}

// newShareParams converts a Solution into the wire submit params: nonce as
// the lowercase 8-hex-digit encoding of its little-endian byte
// representation (spec.md §6), result as the 64-hex-digit hash.
func newShareParams(subID string, sol Solution) submitParams {
	return submitParams{
		ID:     subID,
		JobID:  sol.JobID,
		Nonce:  bytesToHex(uint32ToLeBytes(sol.Nonce)),
		Result: bytesToHex(sol.ResultHash[:]),
	}
}
