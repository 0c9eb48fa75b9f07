package randomx

import (
	"encoding/hex"
	"testing"
)

// Reference test vectors from the RandomX specification.
var testVectors = []struct {
	key   string
	input string
	hash  string
}{
	{
		key:   "test key 000",
		input: "This is a test",
		hash:  "639183aae1bf4c9a35884cb46b09cad9175f04efd7684e7262a0ac1c2f0b4e3f",
	},
	{
		key:   "test key 000",
		input: "Lorem ipsum dolor sit amet",
		hash:  "300a0adb47603dedb42228ccb2b211104f4da45af709cd7547cd049e9489c969",
	},
}

func TestNewCache_rejectsEmptySeed(t *testing.T) {
	if _, err := NewCache(FlagDefault, nil); err != ErrInvalidSeed {
		t.Errorf("expected ErrInvalidSeed, got %v", err)
	}
}

func TestCacheAndVM_calculateHash(t *testing.T) {
	for _, tv := range testVectors {
		cache, err := NewCache(FlagDefault, []byte(tv.key))
		if err != nil {
			t.Fatalf("NewCache failed: %v", err)
		}

		vm, err := NewVM(FlagDefault, cache, nil)
		if err != nil {
			cache.Release()
			t.Fatalf("NewVM failed: %v", err)
		}

		got := vm.CalculateHash([]byte(tv.input))
		gotHex := hex.EncodeToString(got[:])
		if gotHex != tv.hash {
			t.Errorf("hash for input %q = %s, want %s", tv.input, gotHex, tv.hash)
		}

		vm.Destroy()
		cache.Release()
	}
}

func TestDatasetItemCount_positive(t *testing.T) {
	if DatasetItemCount() == 0 {
		t.Error("DatasetItemCount() should be nonzero")
	}
}
