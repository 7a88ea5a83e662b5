package repository

import (
	"context"
	"errors"

	"garmentflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownPermission is returned when a permission id does not exist
var ErrUnknownPermission = errors.New("unknown permission")

// RoleRepository stores roles, their permission sets and the user rows that
// reference a role by name.
type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	Update(ctx context.Context, role *model.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID, withPermissions bool) (*model.Role, error)
	FindByName(ctx context.Context, name string) (*model.Role, error)
	List(ctx context.Context) ([]model.Role, error)

	ListPermissions(ctx context.Context) ([]model.Permission, error)
	EnsurePermission(ctx context.Context, perm *model.Permission) error
	SetPermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error
	PermissionCodes(ctx context.Context, roleName string) ([]string, error)

	CountUsers(ctx context.Context, roleName string) (int64, error)
	RenameUsersRole(ctx context.Context, from, to string) error
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(role).Error
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(role).Error
}

func (r *roleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Delete(&model.Role{}, "id = ?", id).Error
}

func (r *roleRepository) Get(ctx context.Context, id uuid.UUID, withPermissions bool) (*model.Role, error) {
	db := GetDB(ctx, r.db)
	if withPermissions {
		db = db.Preload("Permissions", func(tx *gorm.DB) *gorm.DB { return tx.Order("code") })
	}
	var role model.Role
	if err := db.First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).First(&role, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// List returns built-in roles first, then custom roles by name
func (r *roleRepository) List(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	err := GetDB(ctx, r.db).
		Preload("Permissions", func(tx *gorm.DB) *gorm.DB { return tx.Order("code") }).
		Order("is_system DESC, name").
		Find(&roles).Error
	return roles, err
}

func (r *roleRepository) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	err := GetDB(ctx, r.db).Order(`"group", code`).Find(&perms).Error
	return perms, err
}

// EnsurePermission loads the permission with perm.Code, creating it when missing
func (r *roleRepository) EnsurePermission(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).Where(model.Permission{Code: perm.Code}).FirstOrCreate(perm).Error
}

// SetPermissions replaces the role's permission set. Every id must exist.
func (r *roleRepository) SetPermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	db := GetDB(ctx, r.db)
	role := model.Role{Base: model.Base{ID: roleID}}
	if err := db.Select("id").First(&role, "id = ?", roleID).Error; err != nil {
		return err
	}

	perms := make([]model.Permission, 0, len(permissionIDs))
	if len(permissionIDs) > 0 {
		if err := db.Where("id IN ?", permissionIDs).Find(&perms).Error; err != nil {
			return err
		}
		unique := make(map[uuid.UUID]struct{}, len(permissionIDs))
		for _, id := range permissionIDs {
			unique[id] = struct{}{}
		}
		if len(perms) != len(unique) {
			return ErrUnknownPermission
		}
	}
	return db.Model(&role).Association("Permissions").Replace(perms)
}

// PermissionCodes lists the codes granted to roleName. A role without
// permissions yields an empty list; an unknown role yields gorm.ErrRecordNotFound.
func (r *roleRepository) PermissionCodes(ctx context.Context, roleName string) ([]string, error) {
	db := GetDB(ctx, r.db)
	codes := []string{}
	err := db.Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN roles ON roles.id = role_permissions.role_id").
		Where("roles.name = ?", roleName).
		Order("permissions.code").
		Pluck("permissions.code", &codes).Error
	if err != nil || len(codes) > 0 {
		return codes, err
	}
	if _, err := r.FindByName(ctx, roleName); err != nil {
		return nil, err
	}
	return codes, nil
}

// CountUsers counts active users holding roleName
func (r *roleRepository) CountUsers(ctx context.Context, roleName string) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.User{}).Where("role = ?", roleName).Count(&n).Error
	return n, err
}

// RenameUsersRole moves every user, soft-deleted ones included, from one role name to another
func (r *roleRepository) RenameUsersRole(ctx context.Context, from, to string) error {
	return GetDB(ctx, r.db).Unscoped().Model(&model.User{}).
		Where("role = ?", from).
		Update("role", to).Error
}
