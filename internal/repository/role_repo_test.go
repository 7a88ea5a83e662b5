package repository

import (
	"context"
	"errors"
	"testing"

	"garmentflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func TestRolePermissionCodes(t *testing.T) {
	repo := NewRoleRepository(newTestDB(t))
	ctx := context.Background()

	read := model.Permission{Code: "orders.read", Name: "Read orders", Group: "orders"}
	write := model.Permission{Code: "orders.write", Name: "Write orders", Group: "orders"}
	for _, p := range []*model.Permission{&write, &read} {
		if err := repo.EnsurePermission(ctx, p); err != nil {
			t.Fatalf("ensure %s: %v", p.Code, err)
		}
	}
	again := model.Permission{Code: "orders.read", Name: "ignored", Group: "orders"}
	if err := repo.EnsurePermission(ctx, &again); err != nil || again.ID != read.ID {
		t.Fatalf("second ensure created a new row: %v", err)
	}

	role := &model.Role{Name: "cutter"}
	if err := repo.Create(ctx, role); err != nil {
		t.Fatalf("create role: %v", err)
	}

	codes, err := repo.PermissionCodes(ctx, "cutter")
	if err != nil || len(codes) != 0 {
		t.Fatalf("fresh role codes %v, err %v", codes, err)
	}
	if _, err := repo.PermissionCodes(ctx, "nobody"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("unknown role err = %v", err)
	}

	if err := repo.SetPermissions(ctx, role.ID, []uuid.UUID{write.ID, read.ID, read.ID}); err != nil {
		t.Fatalf("set permissions: %v", err)
	}
	codes, err = repo.PermissionCodes(ctx, "cutter")
	if err != nil || len(codes) != 2 || codes[0] != "orders.read" || codes[1] != "orders.write" {
		t.Fatalf("codes %v, err %v", codes, err)
	}

	err = repo.SetPermissions(ctx, role.ID, []uuid.UUID{read.ID, uuid.New()})
	if !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("unknown permission id err = %v", err)
	}

	got, err := repo.Get(ctx, role.ID, true)
	if err != nil || len(got.Permissions) != 2 {
		t.Fatalf("role keeps %d permissions after failed update (%v)", len(got.Permissions), err)
	}
}
