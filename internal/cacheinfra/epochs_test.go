package cacheinfra

import (
	"sort"
	"sync"
	"testing"
)

func TestEpochTable(t *testing.T) {
	table := NewEpochTable()

	if got := table.Current("users"); got != 0 {
		t.Fatalf("unknown tag should be at epoch 0, got %d", got)
	}

	tags := []string{"users", "repositories"}
	snap := table.Snapshot(tags)
	if !table.Valid(tags, snap) {
		t.Fatal("fresh snapshot should be valid")
	}

	if got := table.Bump("users"); got != 1 {
		t.Errorf("first bump should return 1, got %d", got)
	}
	if table.Valid(tags, snap) {
		t.Error("snapshot must be invalid after one of its tags is bumped")
	}

	if !table.Valid(tags, table.Snapshot(tags)) {
		t.Error("new snapshot should be valid")
	}

	if table.Valid(tags, []uint64{0}) {
		t.Error("mismatched lengths must be invalid")
	}
}

func TestEpochTable_ConcurrentBumps(t *testing.T) {
	table := NewEpochTable()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table.Bump("shared")
		}()
	}
	wg.Wait()

	if got := table.Current("shared"); got != 50 {
		t.Errorf("expected 50 bumps to be counted, got %d", got)
	}
}

func indexedKeys(indexed []Indexed) []string {
	keys := make([]string, len(indexed))
	for i, ix := range indexed {
		keys[i] = ix.Key
	}
	sort.Strings(keys)
	return keys
}

func TestTagIndex(t *testing.T) {
	index := NewTagIndex()

	index.Add("k1", []string{"users", "repositories"})
	index.Add("k2", []string{"users"})
	index.Add("k3", []string{"orders", "repositories"})

	if index.Len() != 3 {
		t.Fatalf("expected 3 indexed keys, got %d", index.Len())
	}

	keys := indexedKeys(index.Take("users"))
	if len(keys) != 2 || keys[0] != "k1" || keys[1] != "k2" {
		t.Errorf("Take(users) = %v, want [k1 k2]", keys)
	}
	if again := index.Take("users"); len(again) != 0 {
		t.Errorf("second Take should be empty, got %v", again)
	}

	index.Forget("k1")
	keys = indexedKeys(index.Take("repositories"))
	if len(keys) != 1 || keys[0] != "k3" {
		t.Errorf("Take(repositories) after Forget(k1) = %v, want [k3]", keys)
	}

	index.Forget("unknown")
}

func TestTagIndex_Release(t *testing.T) {
	tests := []struct {
		name     string
		readd    bool
		wantKeys []string
		wantLen  int
	}{
		{name: "unchanged key is dropped", readd: false, wantKeys: []string{}, wantLen: 0},
		{name: "key added again survives", readd: true, wantKeys: []string{"k1"}, wantLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := NewTagIndex()
			index.Add("k1", []string{"users", "repositories"})

			taken := index.Take("users")
			if len(taken) != 1 {
				t.Fatalf("Take(users) = %v, want one key", taken)
			}

			if tt.readd {
				index.Add("k1", []string{"users", "repositories"})
			}
			index.Release(taken[0].Key, taken[0].Version)

			if got := index.Len(); got != tt.wantLen {
				t.Errorf("Len() = %d, want %d", got, tt.wantLen)
			}
			if got := indexedKeys(index.Take("repositories")); len(got) != len(tt.wantKeys) {
				t.Errorf("Take(repositories) = %v, want %v", got, tt.wantKeys)
			}
		})
	}
}
