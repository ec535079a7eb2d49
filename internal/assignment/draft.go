package assignment

import (
	"fmt"
	"time"

	"github.com/noah-isme/family-console-api/internal/models"
)

// Draft is an unsaved family with fully resolved students in its slots.
// A nil student means the slot is empty.
type Draft struct {
	Title             string
	Location          string
	Batch             string
	AllowOtherBatches bool
	FamilyDate        *time.Time
	Status            models.FamilyStatus

	Leader    *models.Student
	CoLeader  *models.Student
	Secretary *models.Student

	GrandParents []GrandParent
}

// GrandParent is a titled sub-group anchored by up to two grandparents.
type GrandParent struct {
	Title       string
	GrandFather *models.Student
	GrandMother *models.Student
	Families    []FamilyUnit
}

// FamilyUnit is a father and mother pair with their children.
type FamilyUnit struct {
	Father    Parent
	Mother    Parent
	Children  []Child
	CreatedAt time.Time
}

// Parent is a parental slot plus contact overrides.
type Parent struct {
	Student    *models.Student
	Phone      string
	Email      string
	Occupation string
}

// Child is a child slot.
type Child struct {
	Student      *models.Student
	Relationship models.Relationship
	BirthOrder   *int
	AddedAt      time.Time
}

// Context returns the batch settings used by the pool filter.
func (d Draft) Context() FamilyContext {
	return FamilyContext{Batch: d.Batch, AllowOtherBatches: d.AllowOtherBatches}
}

// Clone deep-copies the slice structure so reducers never share nested arrays.
// Students are shared because they are read-only reference data.
func (d Draft) Clone() Draft {
	out := d
	if d.GrandParents == nil {
		return out
	}
	out.GrandParents = make([]GrandParent, len(d.GrandParents))
	for i, gp := range d.GrandParents {
		cp := gp
		if gp.Families != nil {
			cp.Families = make([]FamilyUnit, len(gp.Families))
			for j, unit := range gp.Families {
				u := unit
				if unit.Children != nil {
					u.Children = append([]Child(nil), unit.Children...)
				}
				cp.Families[j] = u
			}
		}
		out.GrandParents[i] = cp
	}
	return out
}

// Occupant returns the student in the slot at path, or nil when empty. A
// child path one past the end of its unit is the open slot for a new child
// and is always empty.
func (d Draft) Occupant(path SlotPath) (*models.Student, error) {
	if _, ok := roleNames[path.Role]; !ok {
		return nil, fmt.Errorf("unknown role %s", path.Role)
	}
	if d.openChildSlot(path) {
		return nil, nil
	}
	slot, err := d.slot(&path)
	if err != nil {
		return nil, err
	}
	return *slot, nil
}

// Assign returns a copy of d with student placed at path. It fails when the
// student already occupies a different slot or the slot's gender rule is broken.
func Assign(d Draft, path SlotPath, student *models.Student) (Draft, error) {
	if student == nil {
		return Clear(d, path)
	}
	path = path.canonical()
	if gender, ok := path.Role.RequiredGender(); ok && student.Gender != gender {
		return d, &Violation{
			Code:    CodeGenderMismatch,
			Path:    path.String(),
			Message: fmt.Sprintf("%s must be %s", path.Role, gender),
		}
	}
	if existing, ok := SelectedIDs(d)[student.ID]; ok && existing != path {
		return d, &Violation{
			Code:    CodeDuplicateStudent,
			Path:    path.String(),
			Message: fmt.Sprintf("student %s already occupies %s", student.ID, existing),
		}
	}
	out := d.Clone()
	if path.Role == RoleChild {
		out.appendChildSlot(path, student)
	}
	slot, err := out.slot(&path)
	if err != nil {
		return d, err
	}
	*slot = student
	return out, nil
}

// appendChildSlot grows the children list when path points one past its end.
func (d *Draft) appendChildSlot(path SlotPath, student *models.Student) {
	if !d.openChildSlot(path) {
		return
	}
	unit := &d.GrandParents[path.GrandParent].Families[path.Unit]
	unit.Children = append(unit.Children, Child{Relationship: RelationshipFor(student)})
}

func (d Draft) openChildSlot(path SlotPath) bool {
	if path.Role != RoleChild || path.GrandParent < 0 || path.GrandParent >= len(d.GrandParents) {
		return false
	}
	gp := d.GrandParents[path.GrandParent]
	if path.Unit < 0 || path.Unit >= len(gp.Families) {
		return false
	}
	return path.Child == len(gp.Families[path.Unit].Children)
}

// RelationshipFor derives son or daughter from the student's gender.
func RelationshipFor(student *models.Student) models.Relationship {
	if student != nil && student.Gender == models.GenderFemale {
		return models.RelationshipDaughter
	}
	return models.RelationshipSon
}

// Clear returns a copy of d with the slot at path emptied.
func Clear(d Draft, path SlotPath) (Draft, error) {
	out := d.Clone()
	slot, err := out.slot(&path)
	if err != nil {
		return d, err
	}
	*slot = nil
	return out, nil
}

func (d *Draft) slot(path *SlotPath) (**models.Student, error) {
	switch path.Role {
	case RoleFamilyLeader:
		return &d.Leader, nil
	case RoleFamilyCoLeader:
		return &d.CoLeader, nil
	case RoleFamilySecretary:
		return &d.Secretary, nil
	}

	if path.GrandParent < 0 || path.GrandParent >= len(d.GrandParents) {
		return nil, fmt.Errorf("%s: grand parent index out of range", path)
	}
	gp := &d.GrandParents[path.GrandParent]
	switch path.Role {
	case RoleGrandFather:
		return &gp.GrandFather, nil
	case RoleGrandMother:
		return &gp.GrandMother, nil
	}

	if path.Unit < 0 || path.Unit >= len(gp.Families) {
		return nil, fmt.Errorf("%s: family index out of range", path)
	}
	unit := &gp.Families[path.Unit]
	switch path.Role {
	case RoleFather:
		return &unit.Father.Student, nil
	case RoleMother:
		return &unit.Mother.Student, nil
	case RoleChild:
		if path.Child < 0 || path.Child >= len(unit.Children) {
			return nil, fmt.Errorf("%s: child index out of range", path)
		}
		return &unit.Children[path.Child].Student, nil
	}
	return nil, fmt.Errorf("unknown role %s", path.Role)
}
