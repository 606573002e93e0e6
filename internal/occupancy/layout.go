package occupancy

import (
	"fmt"

	"github.com/societyhub/society-server/internal/apperr"
)

// maxFlatsPerFloor keeps the two-digit sequence in flat numbers unambiguous
const maxFlatsPerFloor = 99

// Slot is one planned flat of a building
type Slot struct {
	Floor  int
	Number string
}

// PlanFlats partitions totalFlats across totalFloors. Every floor gets
// ceil(totalFlats/totalFloors) flats until the flats run out, so the last
// populated floor takes the remainder. Flats are numbered {floor}{seq:02d}.
func PlanFlats(totalFloors, totalFlats int) ([]Slot, error) {
	if totalFloors <= 0 {
		return nil, apperr.BadRequest("total floors must be positive, got %d", totalFloors)
	}
	if totalFlats <= 0 {
		return nil, apperr.BadRequest("total flats must be positive, got %d", totalFlats)
	}

	perFloor := (totalFlats + totalFloors - 1) / totalFloors
	if perFloor > maxFlatsPerFloor {
		return nil, apperr.BadRequest("%d flats per floor exceeds the limit of %d", perFloor, maxFlatsPerFloor)
	}

	slots := make([]Slot, 0, totalFlats)
	remaining := totalFlats
	for floor := 1; floor <= totalFloors && remaining > 0; floor++ {
		n := perFloor
		if n > remaining {
			n = remaining
		}
		for seq := 1; seq <= n; seq++ {
			slots = append(slots, Slot{Floor: floor, Number: fmt.Sprintf("%d%02d", floor, seq)})
		}
		remaining -= n
	}

	return slots, nil
}
