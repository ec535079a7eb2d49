package assignment

import "github.com/noah-isme/family-console-api/internal/models"

// FamilyContext carries the family-level settings the pool filter needs.
type FamilyContext struct {
	Batch             string
	AllowOtherBatches bool
}

// FilterCandidates returns the students that may fill a slot of the given
// role. Students already selected elsewhere are dropped, except currentID,
// the slot's own occupant. Parental roles filter by gender and children by
// batch unless the family allows other batches; these rules apply to the
// occupant as well, so an occupant who no longer fits is not offered.
// An empty result is a normal outcome.
func FilterCandidates(role Role, all []models.Student, selected Selection, currentID string, family FamilyContext) []models.Student {
	gender, genderBound := role.RequiredGender()
	batchBound := role == RoleChild && !family.AllowOtherBatches

	seen := make(map[string]struct{}, len(all))
	out := make([]models.Student, 0, len(all))
	for _, student := range all {
		if _, dup := seen[student.ID]; dup {
			continue
		}
		isCurrent := currentID != "" && student.ID == currentID
		if !isCurrent && selected.Has(student.ID) {
			continue
		}
		if genderBound && student.Gender != gender {
			continue
		}
		if batchBound && student.Batch != family.Batch {
			continue
		}
		seen[student.ID] = struct{}{}
		out = append(out, student)
	}
	return out
}
