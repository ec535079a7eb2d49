package assignment

import (
	"fmt"
	"strings"

	"github.com/noah-isme/family-console-api/internal/models"
)

// ViolationCode classifies why a draft was rejected.
type ViolationCode string

const (
	CodeMissingField          ViolationCode = "MISSING_FIELD"
	CodeGrandParentIncomplete ViolationCode = "GRANDPARENT_INCOMPLETE"
	CodeParentMissing         ViolationCode = "PARENT_MISSING"
	CodeGenderMismatch        ViolationCode = "GENDER_MISMATCH"
	CodeDuplicateStudent      ViolationCode = "DUPLICATE_STUDENT"
	CodeBatchMismatch         ViolationCode = "BATCH_MISMATCH"
)

// Violation is the first rule a draft failed.
type Violation struct {
	Code    ViolationCode `json:"code"`
	Path    string        `json:"path,omitempty"`
	Message string        `json:"message"`
}

func (v *Violation) Error() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// Result is either a normalized family or the violation that blocked it.
type Result struct {
	Family    *models.Family
	Violation *Violation
}

// OK reports whether validation passed.
func (r Result) OK() bool {
	return r.Violation == nil
}

// Validate checks d in a fixed order and stops at the first failing rule:
// required top-level fields, grandparent units, family units, duplicate
// occupancy, then child batch membership. A mismatched child batch blocks
// the save unless the family allows other batches. On success the draft is
// projected onto the id-reference write model.
func Validate(d Draft) Result {
	for _, check := range []func(Draft) *Violation{
		checkTopLevel,
		checkGrandParents,
		checkFamilyUnits,
		checkDuplicates,
		checkChildBatches,
	} {
		if v := check(d); v != nil {
			return Result{Violation: v}
		}
	}
	return Result{Family: project(d)}
}

func checkTopLevel(d Draft) *Violation {
	fields := []struct {
		name  string
		empty bool
	}{
		{"title", blank(d.Title)},
		{"location", blank(d.Location)},
		{"batch", blank(d.Batch)},
		{RoleFamilyLeader.String(), d.Leader == nil},
		{RoleFamilyCoLeader.String(), d.CoLeader == nil},
		{RoleFamilySecretary.String(), d.Secretary == nil},
	}
	for _, f := range fields {
		if f.empty {
			return &Violation{Code: CodeMissingField, Path: f.name, Message: f.name + " is required"}
		}
	}
	return nil
}

func checkGrandParents(d Draft) *Violation {
	for i, gp := range d.GrandParents {
		path := fmt.Sprintf("grandParents[%d]", i)
		if blank(gp.Title) {
			return &Violation{Code: CodeGrandParentIncomplete, Path: path + ".title", Message: "grand parent title is required"}
		}
		if gp.GrandFather == nil && gp.GrandMother == nil {
			return &Violation{Code: CodeGrandParentIncomplete, Path: path, Message: "a grandfather or a grandmother is required"}
		}
		if v := checkGender(GrandParentSlot(RoleGrandFather, i), gp.GrandFather); v != nil {
			return v
		}
		if v := checkGender(GrandParentSlot(RoleGrandMother, i), gp.GrandMother); v != nil {
			return v
		}
	}
	return nil
}

func checkFamilyUnits(d Draft) *Violation {
	for i, gp := range d.GrandParents {
		for j, unit := range gp.Families {
			father := ParentSlot(RoleFather, i, j)
			mother := ParentSlot(RoleMother, i, j)
			if unit.Father.Student == nil {
				return &Violation{Code: CodeParentMissing, Path: father.String(), Message: "father is required"}
			}
			if unit.Mother.Student == nil {
				return &Violation{Code: CodeParentMissing, Path: mother.String(), Message: "mother is required"}
			}
			if v := checkGender(father, unit.Father.Student); v != nil {
				return v
			}
			if v := checkGender(mother, unit.Mother.Student); v != nil {
				return v
			}
		}
	}
	return nil
}

func checkDuplicates(d Draft) *Violation {
	dups := Duplicates(d)
	if len(dups) == 0 {
		return nil
	}
	first := dups[0]
	return &Violation{
		Code:    CodeDuplicateStudent,
		Path:    first.Second.String(),
		Message: fmt.Sprintf("student %s already occupies %s", first.StudentID, first.First),
	}
}

func checkChildBatches(d Draft) *Violation {
	if d.AllowOtherBatches {
		return nil
	}
	for i, gp := range d.GrandParents {
		for j, unit := range gp.Families {
			for k, child := range unit.Children {
				if child.Student == nil || child.Student.Batch == d.Batch {
					continue
				}
				return &Violation{
					Code:    CodeBatchMismatch,
					Path:    ChildSlot(i, j, k).String(),
					Message: fmt.Sprintf("child batch %q does not match family batch %q", child.Student.Batch, d.Batch),
				}
			}
		}
	}
	return nil
}

func checkGender(path SlotPath, student *models.Student) *Violation {
	if student == nil {
		return nil
	}
	want, ok := path.Role.RequiredGender()
	if !ok || student.Gender == want {
		return nil
	}
	return &Violation{Code: CodeGenderMismatch, Path: path.String(), Message: fmt.Sprintf("%s must be %s", path.Role, want)}
}

func project(d Draft) *models.Family {
	family := &models.Family{
		Title:             strings.TrimSpace(d.Title),
		Location:          strings.TrimSpace(d.Location),
		Batch:             strings.TrimSpace(d.Batch),
		AllowOtherBatches: d.AllowOtherBatches,
		FamilyDate:        d.FamilyDate,
		FamilyLeaderID:    d.Leader.ID,
		FamilyCoLeaderID:  d.CoLeader.ID,
		FamilySecretaryID: d.Secretary.ID,
		Status:            d.Status,
		GrandParents:      make([]models.GrandParentRecord, 0, len(d.GrandParents)),
	}
	if !family.Status.Valid() {
		family.Status = models.FamilyStatusCurrent
	}
	for _, gp := range d.GrandParents {
		record := models.GrandParentRecord{
			Title:         strings.TrimSpace(gp.Title),
			GrandFatherID: idRef(gp.GrandFather),
			GrandMotherID: idRef(gp.GrandMother),
			Families:      make([]models.FamilyUnitRecord, 0, len(gp.Families)),
		}
		for _, unit := range gp.Families {
			u := models.FamilyUnitRecord{
				Father:    parentRecord(unit.Father),
				Mother:    parentRecord(unit.Mother),
				Children:  make([]models.ChildRecord, 0, len(unit.Children)),
				CreatedAt: unit.CreatedAt,
			}
			for _, child := range unit.Children {
				if child.Student == nil {
					continue
				}
				relationship := child.Relationship
				if relationship == "" {
					relationship = RelationshipFor(child.Student)
				}
				u.Children = append(u.Children, models.ChildRecord{
					StudentID:    child.Student.ID,
					Relationship: relationship,
					BirthOrder:   child.BirthOrder,
					AddedAt:      child.AddedAt,
				})
			}
			record.Families = append(record.Families, u)
		}
		family.GrandParents = append(family.GrandParents, record)
	}
	return family
}

func parentRecord(p Parent) models.ParentRecord {
	return models.ParentRecord{
		StudentID:  p.Student.ID,
		Phone:      strings.TrimSpace(p.Phone),
		Email:      strings.TrimSpace(p.Email),
		Occupation: strings.TrimSpace(p.Occupation),
	}
}

func idRef(student *models.Student) *string {
	if student == nil {
		return nil
	}
	id := student.ID
	return &id
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
