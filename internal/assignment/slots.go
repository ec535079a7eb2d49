package assignment

import "fmt"

// SlotPath locates a slot inside a draft. Indexes are ignored for roles that
// do not need them.
type SlotPath struct {
	Role        Role `json:"role"`
	GrandParent int  `json:"grand_parent"`
	Unit        int  `json:"unit"`
	Child       int  `json:"child"`
}

// LeaderSlot returns the path of a leadership slot.
func LeaderSlot(role Role) SlotPath {
	return SlotPath{Role: role}
}

// GrandParentSlot returns the path of a grandfather or grandmother slot.
func GrandParentSlot(role Role, gp int) SlotPath {
	return SlotPath{Role: role, GrandParent: gp}
}

// ParentSlot returns the path of a father or mother slot.
func ParentSlot(role Role, gp, unit int) SlotPath {
	return SlotPath{Role: role, GrandParent: gp, Unit: unit}
}

// ChildSlot returns the path of a child slot.
func ChildSlot(gp, unit, child int) SlotPath {
	return SlotPath{Role: RoleChild, GrandParent: gp, Unit: unit, Child: child}
}

func (p SlotPath) String() string {
	switch p.Role {
	case RoleFamilyLeader, RoleFamilyCoLeader, RoleFamilySecretary:
		return p.Role.String()
	case RoleGrandFather, RoleGrandMother:
		return fmt.Sprintf("grandParents[%d].%s", p.GrandParent, p.Role)
	case RoleFather, RoleMother:
		return fmt.Sprintf("grandParents[%d].families[%d].%s", p.GrandParent, p.Unit, p.Role)
	case RoleChild:
		return fmt.Sprintf("grandParents[%d].families[%d].children[%d]", p.GrandParent, p.Unit, p.Child)
	default:
		return p.Role.String()
	}
}

// canonical zeroes indexes the role does not use so paths compare equal.
func (p SlotPath) canonical() SlotPath {
	switch p.Role {
	case RoleFamilyLeader, RoleFamilyCoLeader, RoleFamilySecretary:
		return SlotPath{Role: p.Role}
	case RoleGrandFather, RoleGrandMother:
		return SlotPath{Role: p.Role, GrandParent: p.GrandParent}
	case RoleFather, RoleMother:
		return SlotPath{Role: p.Role, GrandParent: p.GrandParent, Unit: p.Unit}
	default:
		return p
	}
}
