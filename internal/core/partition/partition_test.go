package partition

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestFor_Determinism(t *testing.T) {
	id := uuid.MustParse("5b0e3a1c-8f2d-4c6e-9a7b-1d3f5e7a9c0b")
	want := For(id)
	for i := 0; i < 100; i++ {
		require.Equal(t, want, For(id), "iteration %d", i)
	}
}

func TestFor_Range(t *testing.T) {
	inputs := []uuid.UUID{uuid.Nil, uuid.Max, uuid.MustParse("00000000-0000-0000-0000-000000000001")}
	for _, id := range inputs {
		p := For(id)
		require.GreaterOrEqual(t, p, 0)
		require.Less(t, p, Count)
	}
}

func TestFor_Distribution(t *testing.T) {
	// 1000 streams over 256 partitions should hit well over 100 of them.
	seen := make(map[int]struct{})
	for i := 0; i < 1000; i++ {
		seen[For(uuid.NewSHA1(uuid.NameSpaceOID, []byte{byte(i >> 8), byte(i)}))] = struct{}{}
	}
	require.GreaterOrEqual(t, len(seen), 100)
}
