package domain

import (
	"slices"
	"time"
)

type Permission string

const (
	PermissionShiftsWrite       Permission = "shifts:write"
	PermissionShiftsAllAreas    Permission = "shifts:all_areas"
	PermissionShiftsForceAssign Permission = "shifts:force_assign"
)

type Role string

const (
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// RolePermissions 每个角色默认拥有的权限
var RolePermissions = map[Role][]Permission{
	RoleSupervisor: {PermissionShiftsWrite},
	RoleAdmin:      {PermissionShiftsWrite, PermissionShiftsAllAreas, PermissionShiftsForceAssign},
}

type Permissions []Permission

func (p Permissions) Has(perm Permission) bool {
	return slices.Contains(p, perm)
}

// Actor 发起操作的主体，短信指令的 actor 为员工本人
type Actor struct {
	Name        string
	Permissions Permissions
}

func SystemActor() Actor {
	return Actor{Name: "system"}
}

type Supervisor struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}
