package service

import (
	"time"

	"github.com/noah-isme/family-console-api/internal/assignment"
	"github.com/noah-isme/family-console-api/internal/dto"
	"github.com/noah-isme/family-console-api/internal/models"
)

// draftFromRequest hydrates a draft payload. Ids missing from students leave
// their slot empty.
func draftFromRequest(req dto.FamilyDraftRequest, students map[string]*models.Student) assignment.Draft {
	pick := func(id string) *models.Student {
		if id == "" {
			return nil
		}
		return students[id]
	}
	draft := assignment.Draft{
		Title:             req.Title,
		Location:          req.Location,
		Batch:             req.Batch,
		AllowOtherBatches: req.AllowOtherBatches,
		FamilyDate:        req.FamilyDate,
		Status:            req.Status,
		Leader:            pick(req.FamilyLeader),
		CoLeader:          pick(req.FamilyCoLeader),
		Secretary:         pick(req.FamilySecretary),
		GrandParents:      make([]assignment.GrandParent, 0, len(req.GrandParents)),
	}
	for _, gp := range req.GrandParents {
		g := assignment.GrandParent{
			Title:       gp.Title,
			GrandFather: pick(gp.GrandFather),
			GrandMother: pick(gp.GrandMother),
			Families:    make([]assignment.FamilyUnit, 0, len(gp.Families)),
		}
		for _, unit := range gp.Families {
			u := assignment.FamilyUnit{
				Father:   parentFromRequest(unit.Father, pick),
				Mother:   parentFromRequest(unit.Mother, pick),
				Children: make([]assignment.Child, 0, len(unit.Children)),
			}
			if unit.CreatedAt != nil {
				u.CreatedAt = *unit.CreatedAt
			}
			for _, child := range unit.Children {
				c := assignment.Child{
					Student:      pick(child.Student),
					Relationship: child.Relationship,
					BirthOrder:   child.BirthOrder,
				}
				if child.AddedAt != nil {
					c.AddedAt = *child.AddedAt
				}
				u.Children = append(u.Children, c)
			}
			g.Families = append(g.Families, u)
		}
		draft.GrandParents = append(draft.GrandParents, g)
	}
	return draft
}

func parentFromRequest(p dto.ParentDraftRequest, pick func(string) *models.Student) assignment.Parent {
	return assignment.Parent{Student: pick(p.Student), Phone: p.Phone, Email: p.Email, Occupation: p.Occupation}
}

// requestFromDraft flattens a draft back into its id payload.
func requestFromDraft(d assignment.Draft, version int) dto.FamilyDraftRequest {
	req := dto.FamilyDraftRequest{
		Title:             d.Title,
		Location:          d.Location,
		Batch:             d.Batch,
		AllowOtherBatches: d.AllowOtherBatches,
		FamilyDate:        d.FamilyDate,
		FamilyLeader:      studentID(d.Leader),
		FamilyCoLeader:    studentID(d.CoLeader),
		FamilySecretary:   studentID(d.Secretary),
		Status:            d.Status,
		GrandParents:      make([]dto.GrandParentDraftRequest, 0, len(d.GrandParents)),
		Version:           version,
	}
	for _, gp := range d.GrandParents {
		g := dto.GrandParentDraftRequest{
			Title:       gp.Title,
			GrandFather: studentID(gp.GrandFather),
			GrandMother: studentID(gp.GrandMother),
			Families:    make([]dto.FamilyUnitDraftRequest, 0, len(gp.Families)),
		}
		for _, unit := range gp.Families {
			u := dto.FamilyUnitDraftRequest{
				Father:    parentToRequest(unit.Father),
				Mother:    parentToRequest(unit.Mother),
				Children:  make([]dto.ChildDraftRequest, 0, len(unit.Children)),
				CreatedAt: timeRef(unit.CreatedAt),
			}
			for _, child := range unit.Children {
				u.Children = append(u.Children, dto.ChildDraftRequest{
					Student:      studentID(child.Student),
					Relationship: child.Relationship,
					BirthOrder:   child.BirthOrder,
					AddedAt:      timeRef(child.AddedAt),
				})
			}
			g.Families = append(g.Families, u)
		}
		req.GrandParents = append(req.GrandParents, g)
	}
	return req
}

func parentToRequest(p assignment.Parent) dto.ParentDraftRequest {
	return dto.ParentDraftRequest{Student: studentID(p.Student), Phone: p.Phone, Email: p.Email, Occupation: p.Occupation}
}

// familyView re-hydrates the id references of a stored family.
func familyView(f *models.Family, students map[string]*models.Student) dto.FamilyView {
	ref := func(id string) *dto.StudentSummary {
		if id == "" {
			return nil
		}
		return dto.NewStudentSummary(students[id])
	}
	refPtr := func(id *string) *dto.StudentSummary {
		if id == nil {
			return nil
		}
		return ref(*id)
	}
	view := dto.FamilyView{
		ID:                f.ID,
		Title:             f.Title,
		Location:          f.Location,
		Batch:             f.Batch,
		AllowOtherBatches: f.AllowOtherBatches,
		FamilyDate:        f.FamilyDate,
		Status:            f.Status,
		FamilyLeader:      ref(f.FamilyLeaderID),
		FamilyCoLeader:    ref(f.FamilyCoLeaderID),
		FamilySecretary:   ref(f.FamilySecretaryID),
		GrandParents:      make([]dto.GrandParentView, 0, len(f.GrandParents)),
		Version:           f.Version,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
	for _, gp := range f.GrandParents {
		g := dto.GrandParentView{
			Title:       gp.Title,
			GrandFather: refPtr(gp.GrandFatherID),
			GrandMother: refPtr(gp.GrandMotherID),
			Families:    make([]dto.FamilyUnitView, 0, len(gp.Families)),
		}
		for _, unit := range gp.Families {
			u := dto.FamilyUnitView{
				Father:    dto.ParentView{Student: ref(unit.Father.StudentID), Phone: unit.Father.Phone, Email: unit.Father.Email, Occupation: unit.Father.Occupation},
				Mother:    dto.ParentView{Student: ref(unit.Mother.StudentID), Phone: unit.Mother.Phone, Email: unit.Mother.Email, Occupation: unit.Mother.Occupation},
				Children:  make([]dto.ChildView, 0, len(unit.Children)),
				CreatedAt: unit.CreatedAt,
			}
			for _, child := range unit.Children {
				u.Children = append(u.Children, dto.ChildView{
					Student:      ref(child.StudentID),
					Relationship: child.Relationship,
					BirthOrder:   child.BirthOrder,
					AddedAt:      child.AddedAt,
				})
			}
			g.Families = append(g.Families, u)
		}
		view.GrandParents = append(view.GrandParents, g)
	}
	return view
}

// stampTimes fills unset unit and child timestamps with now.
func stampTimes(f *models.Family, now time.Time) {
	for i := range f.GrandParents {
		for j := range f.GrandParents[i].Families {
			unit := &f.GrandParents[i].Families[j]
			if unit.CreatedAt.IsZero() {
				unit.CreatedAt = now
			}
			for k := range unit.Children {
				if unit.Children[k].AddedAt.IsZero() {
					unit.Children[k].AddedAt = now
				}
			}
		}
	}
}

func studentID(s *models.Student) string {
	if s == nil {
		return ""
	}
	return s.ID
}

func timeRef(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
