package service

import (
	"context"
	"errors"
	"strings"

	"garmentflow/internal/model"
	"garmentflow/internal/repository"
	"garmentflow/pkg/apperror"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"` // Permission UUIDs
}

type UpdateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateRolePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" binding:"required"`
}

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// Permission codes checked by the route middleware
const (
	PermDashboardRead  = "dashboard.read"
	PermOrdersRead     = "orders.read"
	PermOrdersWrite    = "orders.write"
	PermOrdersDelete   = "orders.delete"
	PermProcessAssign  = "process.assign"
	PermProcessUpdate  = "process.update"
	PermQualityWrite   = "quality.write"
	PermInventoryRead  = "inventory.read"
	PermInventoryWrite = "inventory.write"
	PermMasterRead     = "master.read"
	PermMasterWrite    = "master.write"
	PermUsersRead      = "users.read"
	PermUsersWrite     = "users.write"
	PermUsersDelete    = "users.delete"
	PermRolesManage    = "roles.manage"
	PermAuditRead      = "audit.read"
	PermBarcodesRead   = "barcodes.read"
)

var defaultPermissions = []model.Permission{
	{Code: PermDashboardRead, Name: "View dashboard", Group: "dashboard"},
	{Code: PermOrdersRead, Name: "View orders", Group: "orders"},
	{Code: PermOrdersWrite, Name: "Create and edit orders", Group: "orders"},
	{Code: PermOrdersDelete, Name: "Delete orders", Group: "orders"},
	{Code: PermProcessAssign, Name: "Assign orders to the next process", Group: "process"},
	{Code: PermProcessUpdate, Name: "Start, complete and hold process steps", Group: "process"},
	{Code: PermQualityWrite, Name: "Record rejects and rework", Group: "quality"},
	{Code: PermInventoryRead, Name: "View materials and accessories", Group: "inventory"},
	{Code: PermInventoryWrite, Name: "Move stock and issue to orders", Group: "inventory"},
	{Code: PermMasterRead, Name: "View buyers and styles", Group: "master"},
	{Code: PermMasterWrite, Name: "Manage buyers and styles", Group: "master"},
	{Code: PermUsersRead, Name: "View users", Group: "users"},
	{Code: PermUsersWrite, Name: "Manage users", Group: "users"},
	{Code: PermUsersDelete, Name: "Delete users", Group: "users"},
	{Code: PermRolesManage, Name: "Manage roles and permissions", Group: "roles"},
	{Code: PermAuditRead, Name: "View activity history", Group: "audit"},
	{Code: PermBarcodesRead, Name: "Print and scan barcodes", Group: "barcodes"},
}

type roleDefinition struct {
	Name        string
	Description string
	PermCodes   []string
}

var defaultRoles = []roleDefinition{
	{
		Name:        model.RoleAdmin,
		Description: "Administrator with full access",
		PermCodes: []string{
			PermDashboardRead, PermOrdersRead, PermOrdersWrite, PermOrdersDelete,
			PermProcessAssign, PermProcessUpdate, PermQualityWrite,
			PermInventoryRead, PermInventoryWrite, PermMasterRead, PermMasterWrite,
			PermUsersRead, PermUsersWrite, PermUsersDelete, PermRolesManage,
			PermAuditRead, PermBarcodesRead,
		},
	},
	{
		Name:        model.RolePPIC,
		Description: "Production planning: creates orders and routes them between departments",
		PermCodes: []string{
			PermDashboardRead, PermOrdersRead, PermOrdersWrite,
			PermProcessAssign, PermProcessUpdate, PermQualityWrite,
			PermInventoryRead, PermInventoryWrite, PermMasterRead, PermMasterWrite,
			PermAuditRead, PermBarcodesRead,
		},
	},
	{
		Name:        model.RoleSupervisor,
		Description: "Department supervisor: receives and completes work, records rejects",
		PermCodes: []string{
			PermDashboardRead, PermOrdersRead, PermProcessUpdate, PermQualityWrite,
			PermInventoryRead, PermMasterRead, PermBarcodesRead,
		},
	},
	{
		Name:        model.RoleOperator,
		Description: "Line operator: reads orders and scans bundles",
		PermCodes: []string{
			PermOrdersRead, PermBarcodesRead,
		},
	},
	{
		Name:        model.RoleWarehouse,
		Description: "Warehouse: materials, accessories and issuance to orders",
		PermCodes: []string{
			PermDashboardRead, PermOrdersRead, PermInventoryRead, PermInventoryWrite,
			PermMasterRead, PermBarcodesRead,
		},
	},
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, id string) (*RoleResponse, error)
	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (*RoleResponse, error)
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
	SeedDefaultRolesAndPermissions(ctx context.Context) error
}

type roleService struct {
	roleRepo  repository.RoleRepository
	txManager repository.TransactionManager
}

func NewRoleService(roleRepo repository.RoleRepository, txManager repository.TransactionManager) RoleService {
	return &roleService{roleRepo: roleRepo, txManager: txManager}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.roleRepo.List(ctx)
	if err != nil {
		return nil, apperror.Internal("failed to fetch roles", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	roleID, err := parseID(id, "role")
	if err != nil {
		return nil, err
	}

	role, err := s.roleRepo.Get(ctx, roleID, true)
	if err != nil {
		return nil, lookupErr(err, apperror.CodeNotFound, "role")
	}

	resp := toRoleResponse(*role)
	return &resp, nil
}

func (s *roleService) CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error) {
	permIDs, err := parsePermissionIDs(req.Permissions)
	if err != nil {
		return nil, err
	}

	role := model.Role{
		Name:        strings.ToLower(strings.TrimSpace(req.Name)),
		Description: req.Description,
		IsSystem:    false,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.roleRepo.FindByName(txCtx, role.Name); err == nil {
			return apperror.Conflict(apperror.CodeDuplicate, "role %s already exists", role.Name)
		}
		if err := s.roleRepo.Create(txCtx, &role); err != nil {
			return apperror.Internal("failed to create role", err)
		}
		if len(permIDs) > 0 {
			if err := s.roleRepo.SetPermissions(txCtx, role.ID, permIDs); err != nil {
				return permissionErr(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reload with permissions
	return s.GetRole(ctx, role.ID.String())
}

func (s *roleService) UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	roleID, err := parseID(id, "role")
	if err != nil {
		return nil, err
	}

	name := strings.ToLower(strings.TrimSpace(req.Name))
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.roleRepo.Get(txCtx, roleID, false)
		if err != nil {
			return lookupErr(err, apperror.CodeNotFound, "role")
		}
		if role.IsSystem && name != role.Name {
			return apperror.Validation(apperror.CodeInvalidInput, "system role %s cannot be renamed", role.Name)
		}

		oldName := role.Name
		role.Name = name
		role.Description = req.Description
		if err := s.roleRepo.Update(txCtx, role); err != nil {
			if isDuplicateKey(err) {
				return apperror.Conflict(apperror.CodeDuplicate, "role %s already exists", name)
			}
			return apperror.Internal("failed to update role", err)
		}
		// users reference roles by name
		if oldName != name {
			if err := s.roleRepo.RenameUsersRole(txCtx, oldName, name); err != nil {
				return apperror.Internal("failed to move users to renamed role", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetRole(ctx, id)
}

// DeleteRole removes a custom role and returns it so callers can drop cached permissions
func (s *roleService) DeleteRole(ctx context.Context, id string) (*RoleResponse, error) {
	roleID, err := parseID(id, "role")
	if err != nil {
		return nil, err
	}

	var resp RoleResponse
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.roleRepo.Get(txCtx, roleID, false)
		if err != nil {
			return lookupErr(err, apperror.CodeNotFound, "role")
		}
		if role.IsSystem {
			return apperror.Validation(apperror.CodeInvalidInput, "cannot delete system role %s", role.Name)
		}
		holders, err := s.roleRepo.CountUsers(txCtx, role.Name)
		if err != nil {
			return apperror.Internal("failed to count role users", err)
		}
		if holders > 0 {
			return apperror.Conflict(apperror.CodeInvalidInput, "role %s is still assigned to %d users", role.Name, holders)
		}
		// Clear associations before deleting
		if err := s.roleRepo.SetPermissions(txCtx, roleID, nil); err != nil {
			return apperror.Internal("failed to clear permissions", err)
		}
		if err := s.roleRepo.Delete(txCtx, roleID); err != nil {
			return apperror.Internal("failed to delete role", err)
		}
		resp = toRoleResponse(*role)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *roleService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.roleRepo.ListPermissions(ctx)
	if err != nil {
		return nil, apperror.Internal("failed to fetch permissions", err)
	}

	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, toPermissionResponse(p))
	}
	return res, nil
}

func (s *roleService) UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (*RoleResponse, error) {
	id, err := parseID(roleID, "role")
	if err != nil {
		return nil, err
	}
	permIDs, err := parsePermissionIDs(req.PermissionIDs)
	if err != nil {
		return nil, err
	}

	if err := s.roleRepo.SetPermissions(ctx, id, permIDs); err != nil {
		return nil, permissionErr(err)
	}

	return s.GetRole(ctx, roleID)
}

func (s *roleService) GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error) {
	codes, err := s.roleRepo.PermissionCodes(ctx, roleName)
	if err != nil {
		return nil, lookupErr(err, apperror.CodeNotFound, "role")
	}
	return codes, nil
}

// SeedDefaultRolesAndPermissions creates the default permissions and roles if not already present.
// Built-in roles are reset to their default permission set.
func (s *roleService) SeedDefaultRolesAndPermissions(ctx context.Context) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		permByCode := make(map[string]uuid.UUID, len(defaultPermissions))
		for _, p := range defaultPermissions {
			perm := p
			if err := s.roleRepo.EnsurePermission(txCtx, &perm); err != nil {
				return apperror.Internal("failed to seed permission "+p.Code, err)
			}
			permByCode[perm.Code] = perm.ID
		}

		for _, def := range defaultRoles {
			role, err := s.roleRepo.FindByName(txCtx, def.Name)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				role = &model.Role{Name: def.Name, Description: def.Description, IsSystem: true}
				err = s.roleRepo.Create(txCtx, role)
			}
			if err != nil {
				return apperror.Internal("failed to seed role "+def.Name, err)
			}

			ids := make([]uuid.UUID, 0, len(def.PermCodes))
			for _, code := range def.PermCodes {
				if id, ok := permByCode[code]; ok {
					ids = append(ids, id)
				}
			}
			if err := s.roleRepo.SetPermissions(txCtx, role.ID, ids); err != nil {
				return apperror.Internal("failed to assign permissions to role "+def.Name, err)
			}
		}
		return nil
	})
}

// --- Helpers ---

func permissionErr(err error) error {
	if errors.Is(err, repository.ErrUnknownPermission) {
		return apperror.Validation(apperror.CodeInvalidInput, "unknown permission id")
	}
	return lookupErr(err, apperror.CodeNotFound, "role")
}

func parsePermissionIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, pid := range raw {
		parsed, err := uuid.Parse(pid)
		if err != nil {
			return nil, apperror.Validation(apperror.CodeInvalidInput, "invalid permission id %q", pid)
		}
		ids = append(ids, parsed)
	}
	return ids, nil
}

func toRoleResponse(r model.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, toPermissionResponse(p))
	}

	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:    p.ID.String(),
		Code:  p.Code,
		Name:  p.Name,
		Group: p.Group,
	}
}
