package occupancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/societyhub/society-server/internal/apperr"
)

func TestPlanFlats(t *testing.T) {
	slots, err := PlanFlats(3, 7)
	require.NoError(t, err)

	var numbers []string
	for _, s := range slots {
		numbers = append(numbers, s.Number)
	}
	assert.Equal(t, []string{"101", "102", "103", "201", "202", "203", "301"}, numbers)
	assert.Equal(t, 3, slots[len(slots)-1].Floor)
}

func TestPlanFlatsSumInvariant(t *testing.T) {
	for floors := 1; floors <= 12; floors++ {
		for total := 1; total <= 60; total++ {
			slots, err := PlanFlats(floors, total)
			require.NoError(t, err)
			assert.Len(t, slots, total, "floors=%d total=%d", floors, total)

			seen := make(map[string]bool)
			for _, s := range slots {
				assert.False(t, seen[s.Number], "duplicate number %s", s.Number)
				seen[s.Number] = true
				assert.LessOrEqual(t, s.Floor, floors)
			}
		}
	}
}

func TestPlanFlatsRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		floors int
		flats  int
	}{
		{"zero floors", 0, 10},
		{"zero flats", 4, 0},
		{"negative flats", 4, -2},
		{"too many per floor", 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanFlats(tt.floors, tt.flats)
			assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
		})
	}

	slots, err := PlanFlats(1, 99)
	require.NoError(t, err)
	assert.Equal(t, "199", slots[98].Number)
}
