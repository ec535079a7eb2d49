// Package assignment holds the pure assignment-integrity rules for family
// builder drafts and student job slots. Nothing here performs I/O; every
// function works on the snapshot it is handed.
package assignment

import (
	"fmt"

	"github.com/noah-isme/family-console-api/internal/models"
)

// Role identifies a slot kind inside a family draft.
type Role int

const (
	RoleFamilyLeader Role = iota + 1
	RoleFamilyCoLeader
	RoleFamilySecretary
	RoleGrandFather
	RoleGrandMother
	RoleFather
	RoleMother
	RoleChild
)

var roleNames = map[Role]string{
	RoleFamilyLeader:    "familyLeader",
	RoleFamilyCoLeader:  "familyCoLeader",
	RoleFamilySecretary: "familySecretary",
	RoleGrandFather:     "grandFather",
	RoleGrandMother:     "grandMother",
	RoleFather:          "father",
	RoleMother:          "mother",
	RoleChild:           "child",
}

// Roles lists every role in slot-walk order.
var Roles = []Role{
	RoleFamilyLeader,
	RoleFamilyCoLeader,
	RoleFamilySecretary,
	RoleGrandFather,
	RoleGrandMother,
	RoleFather,
	RoleMother,
	RoleChild,
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole resolves the wire name of a role.
func ParseRole(raw string) (Role, bool) {
	for role, name := range roleNames {
		if name == raw {
			return role, true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	name, ok := roleNames[r]
	if !ok {
		return nil, fmt.Errorf("unknown role %d", int(r))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	role, ok := ParseRole(string(text))
	if !ok {
		return fmt.Errorf("unknown role %q", string(text))
	}
	*r = role
	return nil
}

// Leadership reports whether r is one of the three family leader roles.
func (r Role) Leadership() bool {
	switch r {
	case RoleFamilyLeader, RoleFamilyCoLeader, RoleFamilySecretary:
		return true
	default:
		return false
	}
}

// RequiredGender returns the gender a slot demands. Leader and child slots have none.
func (r Role) RequiredGender() (models.Gender, bool) {
	switch r {
	case RoleGrandFather, RoleFather:
		return models.GenderMale, true
	case RoleGrandMother, RoleMother:
		return models.GenderFemale, true
	default:
		return "", false
	}
}

// JobType is the role a student holds inside a job sub-class.
type JobType string

const (
	JobTypeMember    JobType = "member"
	JobTypeLeader    JobType = "leader"
	JobTypeSubLeader JobType = "sub_leader"
	JobTypeSecretary JobType = "Secretary"
)

// JobTypes lists every job type in display order.
var JobTypes = []JobType{JobTypeMember, JobTypeLeader, JobTypeSubLeader, JobTypeSecretary}

// ParseJobType resolves a stored job type. The empty string is not a type.
func ParseJobType(raw string) (JobType, bool) {
	for _, t := range JobTypes {
		if string(t) == raw {
			return t, true
		}
	}
	return "", false
}

// Exclusive reports whether at most one job per sub-class may carry t.
func (t JobType) Exclusive() bool {
	switch t {
	case JobTypeLeader, JobTypeSubLeader, JobTypeSecretary:
		return true
	default:
		return false
	}
}
