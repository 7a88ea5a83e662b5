package service

import (
	"context"
	"testing"

	"garmentflow/internal/model"
	"garmentflow/internal/repository"
	"garmentflow/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
)

const userTestSecret = "user-test-secret"

func newUserServices(t *testing.T) (UserService, RoleService) {
	t.Helper()
	db := newTestDB(t)
	roleRepo := repository.NewRoleRepository(db)
	roles := NewRoleService(roleRepo, repository.NewTransactionManager(db))
	if err := roles.SeedDefaultRolesAndPermissions(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return NewUserService(repository.NewUserRepository(db), roleRepo, userTestSecret), roles
}

func TestLoginIssuesRoleToken(t *testing.T) {
	users, _ := newUserServices(t)
	ctx := context.Background()

	created, err := users.CreateUser(ctx, CreateUserRequest{
		Username: "sup.minh", Email: "minh@factory.test", Password: "needle42", Role: model.RoleSupervisor,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, login := range []string{"sup.minh", "minh@factory.test"} {
		tok, err := users.Login(ctx, LoginUserRequest{Login: login, Password: "needle42"})
		if err != nil {
			t.Fatalf("login %s: %v", login, err)
		}
		claims := jwt.MapClaims{}
		if _, err := jwt.ParseWithClaims(tok.Token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(userTestSecret), nil
		}); err != nil {
			t.Fatalf("parse token: %v", err)
		}
		if claims["role"] != model.RoleSupervisor || claims["sub"] != created.ID.String() {
			t.Fatalf("claims %v", claims)
		}
	}

	_, err = users.Login(ctx, LoginUserRequest{Login: "sup.minh", Password: "wrong-one"})
	if appErr := apperror.As(err); err == nil || appErr.Status() != 401 {
		t.Fatalf("bad password: %v", err)
	}

	me, err := users.Me(ctx, created.ID.String())
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if len(me.Permissions) == 0 {
		t.Fatal("supervisor has no permissions")
	}
}

func TestCreateUserChecksRoleAndDuplicates(t *testing.T) {
	users, _ := newUserServices(t)
	ctx := context.Background()

	_, err := users.CreateUser(ctx, CreateUserRequest{Username: "x", Email: "x@factory.test", Password: "secret1", Role: "dyer"})
	expectCode(t, err, apperror.CodeInvalidInput)

	req := CreateUserRequest{Username: "wh.tam", Email: "tam@factory.test", Password: "secret1", Role: model.RoleWarehouse}
	if _, err := users.CreateUser(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}
	req.Email = "other@factory.test"
	_, err = users.CreateUser(ctx, req)
	expectCode(t, err, apperror.CodeDuplicate)
}

func TestDeleteUserRefusesSelf(t *testing.T) {
	users, _ := newUserServices(t)
	ctx := context.Background()

	u, err := users.CreateUser(ctx, CreateUserRequest{Username: "op.linh", Email: "linh@factory.test", Password: "secret1", Role: model.RoleOperator})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := u.ID.String()

	expectCode(t, users.DeleteUser(ctx, Actor{UserID: id}, id), apperror.CodeInvalidInput)
	if err := users.DeleteUser(ctx, Actor{UserID: "someone-else"}, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = users.GetUserByID(ctx, id)
	expectCode(t, err, apperror.CodeNotFound)
}

func TestCustomRoleLifecycle(t *testing.T) {
	users, roles := newUserServices(t)
	ctx := context.Background()

	perms, err := roles.ListPermissions(ctx)
	if err != nil || len(perms) == 0 {
		t.Fatalf("permissions: %d %v", len(perms), err)
	}

	role, err := roles.CreateRole(ctx, CreateRoleRequest{Name: " Dyeing ", Permissions: []string{perms[0].ID}})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	if role.Name != "dyeing" || len(role.Permissions) != 1 {
		t.Fatalf("role %+v", role)
	}

	_, err = roles.UpdateRolePermissions(ctx, role.ID, UpdateRolePermissionsRequest{
		PermissionIDs: []string{perms[0].ID, "00000000-0000-0000-0000-000000000001"},
	})
	expectCode(t, err, apperror.CodeInvalidInput)

	u, err := users.CreateUser(ctx, CreateUserRequest{Username: "dye.hoa", Email: "hoa@factory.test", Password: "secret1", Role: "dyeing"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := roles.UpdateRole(ctx, role.ID, UpdateRoleRequest{Name: "dye-house"}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	moved, err := users.GetUserByID(ctx, u.ID.String())
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if moved.Role != "dye-house" {
		t.Fatalf("user kept role %q", moved.Role)
	}

	_, err = roles.DeleteRole(ctx, role.ID)
	expectCode(t, err, apperror.CodeInvalidInput)

	if err := users.DeleteUser(ctx, Actor{}, u.ID.String()); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := roles.DeleteRole(ctx, role.ID); err != nil {
		t.Fatalf("delete role: %v", err)
	}

	admin, err := roles.GetPermissionsByRoleName(ctx, model.RoleAdmin)
	if err != nil || len(admin) != len(perms) {
		t.Fatalf("admin holds %d of %d permissions (%v)", len(admin), len(perms), err)
	}
	all, err := roles.ListRoles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, r := range all {
		if r.Name == model.RoleAdmin {
			if _, err := roles.DeleteRole(ctx, r.ID); err == nil {
				t.Fatal("system role deleted")
			}
		}
	}
}
