package stratum

import (
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
)

func Test_hexRoundTrip(t *testing.T) {
	tests := []string{
		"",
		"00",
		"ff",
		"deadbeef",
		strings.Repeat("ab", 32),
	}
	for i, in := range tests {
		t.Run(fmt.Sprintf("_%d", i), func(t *testing.T) {
			b, err := hexToBytes(in)
			if err != nil {
				t.Fatalf("hexToBytes(%q) error: %v", in, err)
			}
			if got := bytesToHex(b); got != in {
				t.Errorf("round trip = %v, want %v", got, in)
			}
		})
	}
}

func Test_hexToBytes_rejectsInvalid(t *testing.T) {
	tests := []string{"a", "abc", "zz", "0x12"}
	for i, in := range tests {
		t.Run(fmt.Sprintf("_%d", i), func(t *testing.T) {
			if _, err := hexToBytes(in); err == nil {
				t.Errorf("hexToBytes(%q) expected error, got nil", in)
			}
		})
	}
}

func Test_CheckTarget_totalOrder(t *testing.T) {
	pairs := [][2]string{
		{strings.Repeat("00", 32), strings.Repeat("00", 32)},
		{strings.Repeat("ff", 32), strings.Repeat("00", 32)},
		{"00" + strings.Repeat("ff", 31), strings.Repeat("ff", 31) + "00"},
		{strings.Repeat("ab", 32), strings.Repeat("ac", 32)},
	}
	for i, pair := range pairs {
		t.Run(fmt.Sprintf("_%d", i), func(t *testing.T) {
			a := mustHash(t, pair[0])
			b := mustHash(t, pair[1])

			ab := CheckTarget(a, b)
			ba := CheckTarget(b, a)

			if a == b && !(ab && ba) {
				t.Errorf("equal values must satisfy check both ways")
			}
			if !ab && !ba {
				t.Errorf("check(a,b) or check(b,a) must always hold")
			}
		})
	}
}

func mustHash(t *testing.T, hexStr string) [32]byte {
	t.Helper()
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		t.Fatalf("bad hex fixture %q: %v", hexStr, err)
	}
	var out [32]byte
	copy(out[:], b)
	return out
}

func Test_CheckTarget_scenarios(t *testing.T) {
	t.Run("S1_target_all_ones", func(t *testing.T) {
		target, err := DecodeTarget(strings.Repeat("ff", 32))
		if err != nil {
			t.Fatal(err)
		}
		hash := mustHash(t, strings.Repeat("3c", 32))
		if !CheckTarget(hash, target) {
			t.Error("expected any hash to qualify against all-ones target")
		}
	})

	t.Run("S2_target_zero", func(t *testing.T) {
		target, err := DecodeTarget(strings.Repeat("00", 32))
		if err != nil {
			t.Fatal(err)
		}
		if !CheckTarget(mustHash(t, strings.Repeat("00", 32)), target) {
			t.Error("zero hash must qualify against zero target")
		}
		hash := mustHash(t, strings.Repeat("00", 31)+"01")
		if CheckTarget(hash, target) {
			t.Error("hash 1 must not qualify against zero target")
		}
	})

	t.Run("S3_boundary", func(t *testing.T) {
		target, err := DecodeTarget(strings.Repeat("00", 31) + "01")
		if err != nil {
			t.Fatal(err)
		}
		hash := mustHash(t, strings.Repeat("ff", 31)+"00")
		if !CheckTarget(hash, target) {
			t.Error("hash[31]=0x00 < target[31]=0x01 must qualify")
		}
	})
}

func Test_DecodeTarget_compactForm(t *testing.T) {
	target, err := DecodeTarget("0100feff")
	if err != nil {
		t.Fatal(err)
	}
	want := [32]byte{}
	copy(want[28:], []byte{0x01, 0x00, 0xfe, 0xff})
	if target != want {
		t.Errorf("compact target expanded to %x, want %x", target, want)
	}
}

func Test_InsertNonce_positional(t *testing.T) {
	blob := make([]byte, 76)
	for i := range blob {
		blob[i] = 0xaa
	}

	out := InsertNonce(blob, 0x11223344)

	wantNonceBytes := []byte{0x44, 0x33, 0x22, 0x11}
	if got := out[39:43]; !bytesEqual(got, wantNonceBytes) {
		t.Errorf("nonce bytes = %x, want %x", got, wantNonceBytes)
	}
	if !bytesEqual(out[:39], blob[:39]) {
		t.Error("bytes before nonce offset must be unchanged")
	}
	if !bytesEqual(out[43:], blob[43:]) {
		t.Error("bytes after nonce offset must be unchanged")
	}
}

func Test_InsertNonce_S4(t *testing.T) {
	blob, err := hexToBytes(strings.Repeat("00", 43))
	if err != nil {
		t.Fatal(err)
	}
	out := InsertNonce(blob, 0x11223344)
	want := "44332211"
	if got := bytesToHex(out[39:43]); got != want {
		t.Errorf("S4 nonce injection = %v, want %v", got, want)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func Test_decodeJob(t *testing.T) {
	w := wireJob{
		JobID:    "J1",
		Blob:     strings.Repeat("00", 43),
		Target:   strings.Repeat("ff", 32),
		SeedHash: strings.Repeat("aa", 32),
	}
	job, err := decodeJob(w)
	if err != nil {
		t.Fatal(err)
	}
	if job.JobID != "J1" {
		t.Errorf("JobID = %v, want J1", job.JobID)
	}
	if len(job.Blob) != 43 {
		t.Errorf("Blob length = %d, want 43", len(job.Blob))
	}
	if len(job.SeedHash) != 32 {
		t.Errorf("SeedHash length = %d, want 32", len(job.SeedHash))
	}
}

func Test_decodeJob_rejectsShortBlob(t *testing.T) {
	w := wireJob{
		JobID:    "J1",
		Blob:     strings.Repeat("00", 42),
		Target:   strings.Repeat("ff", 32),
		SeedHash: strings.Repeat("aa", 32),
	}
	if _, err := decodeJob(w); err == nil {
		t.Error("expected error for blob shorter than 43 bytes")
	}
}
