package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a panelist's stakeholder category used for stratified statistics.
type Role string

const (
	RoleExpertGBV           Role = "EXPERT_GBV"
	RoleLivedExperience     Role = "LIVED_EXPERIENCE"
	RoleServiceProvider     Role = "SERVICE_PROVIDER"
	RolePolicyMaker         Role = "POLICY_MAKER"
	RoleCommunityMember     Role = "COMMUNITY_MEMBER"
	RoleMedicalProfessional Role = "MEDICAL_PROFESSIONAL"
)

// ValidRoles contains all valid participant roles.
var ValidRoles = []Role{
	RoleExpertGBV,
	RoleLivedExperience,
	RoleServiceProvider,
	RolePolicyMaker,
	RoleCommunityMember,
	RoleMedicalProfessional,
}

// IsValidRole checks if the given role is valid.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if v == r {
			return true
		}
	}
	return false
}

// Participant is a panelist in a single study.
type Participant struct {
	ID        uuid.UUID `json:"id"`
	StudyID   uuid.UUID `json:"study_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
