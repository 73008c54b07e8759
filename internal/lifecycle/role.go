package lifecycle

import (
	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/model"
	"github.com/HUYVESEA0/Lab-Manager-sub000/pkg/apperr"
)

// RoleLevel 角色层级：system_admin=3, admin=2, user=1, 未知=0
func RoleLevel(role string) int {
	switch role {
	case model.RoleSystemAdmin:
		return 3
	case model.RoleAdmin:
		return 2
	case model.RoleUser:
		return 1
	default:
		return 0
	}
}

// HasLevel 判断 role 是否达到 minRole 的层级
func HasLevel(role, minRole string) bool {
	min := RoleLevel(minRole)
	return min > 0 && RoleLevel(role) >= min
}

// ValidRole 是否为已知角色
func ValidRole(role string) bool { return RoleLevel(role) > 0 }

// CanManageUser 调用者层级必须严格高于目标用户当前层级
func CanManageUser(callerRole, targetRole string) error {
	if RoleLevel(callerRole) <= RoleLevel(targetRole) {
		return apperr.ErrInsufficientRole
	}
	return nil
}

// CanAssignRole 校验角色变更
//
// 调用者层级必须严格高于目标用户当前层级，且不低于目标新角色层级；
// 因此只有 system_admin 能授予 system_admin，而同级之间不能互相降级。
func CanAssignRole(callerRole, currentRole, requestedRole string) error {
	if !ValidRole(requestedRole) {
		return apperr.ErrUnknownRole.WithField("role")
	}
	if err := CanManageUser(callerRole, currentRole); err != nil {
		return err
	}
	if RoleLevel(callerRole) < RoleLevel(requestedRole) {
		return apperr.ErrInsufficientRole
	}
	return nil
}
