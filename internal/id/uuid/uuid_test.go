package uuid

import (
	"sort"
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsVersion7(t *testing.T) {
	t.Parallel()

	id, err := New().NewID()
	require.NoError(t, err)

	parsed, err := goUUID.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, goUUID.Version(7), parsed.Version())
}

// Successive v7 IDs sort lexically in creation order, including IDs minted
// within the same millisecond.
func TestRunIDsSortByCreationTime(t *testing.T) {
	t.Parallel()

	gen := New()
	ids := make([]string, 0, 50)
	seen := make(map[string]struct{}, 50)
	for range 50 {
		id, err := gen.NewID()
		require.NoError(t, err)
		ids = append(ids, id)
		seen[id] = struct{}{}
	}

	assert.Len(t, seen, len(ids))
	assert.True(t, sort.StringsAreSorted(ids), "ids out of order: %v", ids)
}
