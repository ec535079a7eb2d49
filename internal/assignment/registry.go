package assignment

import (
	"sort"

	"github.com/noah-isme/family-console-api/internal/models"
)

// Selection indexes every occupied slot of a draft by student id. When a
// student sits in several slots the first one in walk order is kept.
type Selection map[string]SlotPath

// Has reports whether id occupies any slot.
func (s Selection) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the selected ids in sorted order.
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Duplicate records a student found in two slots.
type Duplicate struct {
	StudentID string
	First     SlotPath
	Second    SlotPath
}

// SelectedIDs computes the set of student ids committed to any slot of d.
// It runs in O(total slots) and never mutates d.
func SelectedIDs(d Draft) Selection {
	selected := make(Selection)
	walkSlots(d, func(path SlotPath, student *models.Student) {
		if _, ok := selected[student.ID]; !ok {
			selected[student.ID] = path
		}
	})
	return selected
}

// Duplicates lists every repeated occupancy in walk order.
func Duplicates(d Draft) []Duplicate {
	seen := make(map[string]SlotPath)
	var dups []Duplicate
	walkSlots(d, func(path SlotPath, student *models.Student) {
		if first, ok := seen[student.ID]; ok {
			dups = append(dups, Duplicate{StudentID: student.ID, First: first, Second: path})
			return
		}
		seen[student.ID] = path
	})
	return dups
}

// walkSlots visits occupied slots: leaders, then each grandparent unit with
// its grandparents, fathers, mothers and children.
func walkSlots(d Draft, visit func(SlotPath, *models.Student)) {
	emit := func(path SlotPath, student *models.Student) {
		if student == nil || student.ID == "" {
			return
		}
		visit(path, student)
	}
	emit(LeaderSlot(RoleFamilyLeader), d.Leader)
	emit(LeaderSlot(RoleFamilyCoLeader), d.CoLeader)
	emit(LeaderSlot(RoleFamilySecretary), d.Secretary)
	for i, gp := range d.GrandParents {
		emit(GrandParentSlot(RoleGrandFather, i), gp.GrandFather)
		emit(GrandParentSlot(RoleGrandMother, i), gp.GrandMother)
		for j, unit := range gp.Families {
			emit(ParentSlot(RoleFather, i, j), unit.Father.Student)
			emit(ParentSlot(RoleMother, i, j), unit.Mother.Student)
			for k, child := range unit.Children {
				emit(ChildSlot(i, j, k), child.Student)
			}
		}
	}
}
