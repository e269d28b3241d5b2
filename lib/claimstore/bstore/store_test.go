package bstore

import (
	"github.com/ValentinKolb/dSync/lib/claimstore"
	claimstoretesting "github.com/ValentinKolb/dSync/lib/claimstore/testing"
	"path/filepath"
	"testing"
)

func TestBoltStore(t *testing.T) {
	claimstoretesting.RunClaimStoreTests(t, "bstore", func(dir string) (claimstore.IClaimStore, error) {
		return NewBoltStore(filepath.Join(dir, "claims.db"))
	})
}

func TestLocationKeyOrder(t *testing.T) {
	locations := []int{-1 << 40, -100, -1, 0, 1, 100, 1 << 40}
	for i := 1; i < len(locations); i++ {
		a, b := locationToKey(locations[i-1]), locationToKey(locations[i])
		if string(a) >= string(b) {
			t.Errorf("Expected key of %d to sort before key of %d", locations[i-1], locations[i])
		}
	}
	for _, location := range locations {
		if got := keyToLocation(locationToKey(location)); got != location {
			t.Errorf("Expected %d, got %d", location, got)
		}
	}
}
