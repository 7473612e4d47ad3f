package auth

import (
	"errors"

	"github.com/Mieluoxxx/Lumina-API/internal/models"
)

var (
	// ErrForbidden 角色不满足操作要求
	ErrForbidden = errors.New("role not allowed for this operation")
	// ErrDepartmentMismatch 操作对象不属于调用者所在部门
	ErrDepartmentMismatch = errors.New("operation targets another department")
)

// Identity 已认证的调用者身份
// 由外部身份子系统签发并经网关注入，账本逻辑直接信任其内容
type Identity struct {
	MemberID     uint
	DepartmentID uint
	Role         string
}

// RequireRole 显式授权检查
// 在任何账本读写之前调用；调用者角色必须属于 allowed 集合
func RequireRole(id Identity, allowed ...string) error {
	for _, role := range allowed {
		if id.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// RequireDepartment 部门归属检查
// 总管理员不受部门限制，其余角色只能操作本部门的对象
func RequireDepartment(id Identity, departmentID uint) error {
	if id.Role == models.RoleSuperAdmin {
		return nil
	}
	if id.DepartmentID != departmentID {
		return ErrDepartmentMismatch
	}
	return nil
}
