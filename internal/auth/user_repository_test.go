package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestUserRepository_CreateAndGetByID(t *testing.T) {
	db := testDB(t)
	h := seedTestHousehold(t, db, "Home")
	repo := NewUserRepository(db)
	ctx := context.Background()

	hash, _ := HashPassword("password123")
	user := &User{
		HouseholdID:  h.ID,
		Email:        "pat@example.com",
		DisplayName:  "Pat",
		PasswordHash: hash,
		Role:         RoleMember,
		IsActive:     true,
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !strings.HasPrefix(user.ID, "usr-") {
		t.Fatalf("ID = %q, want usr- prefix", user.ID)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if got.Email != "pat@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "pat@example.com")
	}
	if got.DisplayName != "Pat" {
		t.Errorf("DisplayName = %q, want %q", got.DisplayName, "Pat")
	}
	if got.HouseholdID != h.ID {
		t.Errorf("HouseholdID = %q, want %q", got.HouseholdID, h.ID)
	}
	if got.Role != RoleMember {
		t.Errorf("Role = %q, want %q", got.Role, RoleMember)
	}
	if !got.IsActive {
		t.Error("IsActive should be true")
	}
	if got.PasswordHash == "" {
		t.Error("PasswordHash should be populated")
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db := testDB(t)
	h := seedTestHousehold(t, db, "Home")
	user := seedTestUser(t, db, h.ID, "owner@example.com", RoleOwner)
	repo := NewUserRepository(db)

	got, err := repo.GetByEmail(context.Background(), "owner@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ID = %q, want %q", got.ID, user.ID)
	}
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	db := testDB(t)
	h := seedTestHousehold(t, db, "Home")
	seedTestUser(t, db, h.ID, "duplicate@example.com", RoleMember)
	repo := NewUserRepository(db)

	hash, _ := HashPassword("password123")
	err := repo.Create(context.Background(), &User{
		HouseholdID:  h.ID,
		Email:        "duplicate@example.com",
		DisplayName:  "Second",
		PasswordHash: hash,
		Role:         RoleMember,
		IsActive:     true,
	})
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("error = %v, want ErrEmailExists", err)
	}
}

func TestUserRepository_ListByHousehold(t *testing.T) {
	db := testDB(t)
	h1 := seedTestHousehold(t, db, "Home")
	h2 := seedTestHousehold(t, db, "Cottage")
	seedTestUser(t, db, h1.ID, "a@example.com", RoleOwner)
	seedTestUser(t, db, h1.ID, "b@example.com", RoleMember)
	seedTestUser(t, db, h2.ID, "c@example.com", RoleOwner)
	repo := NewUserRepository(db)

	users, err := repo.ListByHousehold(context.Background(), h1.ID)
	if err != nil {
		t.Fatalf("ListByHousehold() error = %v", err)
	}
	if len(users) != 2 {
		t.Errorf("users in h1 = %d, want 2", len(users))
	}
	for _, u := range users {
		if u.HouseholdID != h1.ID {
			t.Errorf("user %s belongs to %s, want %s", u.ID, u.HouseholdID, h1.ID)
		}
	}
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	db := testDB(t)
	h := seedTestHousehold(t, db, "Home")
	user := seedTestUser(t, db, h.ID, "pat@example.com", RoleMember)
	repo := NewUserRepository(db)
	ctx := context.Background()

	newHash, err := HashPassword("new-password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := repo.UpdatePassword(ctx, user.ID, newHash); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	ok, err := VerifyPassword("new-password", got.PasswordHash)
	if err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if !ok {
		t.Error("new password should verify against the stored hash")
	}
}

func TestUserRepository_UpdatePassword_NotFound(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	err := repo.UpdatePassword(context.Background(), "usr-missing", "$argon2id$x")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_Count(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Count() = %d, want 0 on an empty database", n)
	}

	h := seedTestHousehold(t, db, "Home")
	seedTestUser(t, db, h.ID, "a@example.com", RoleOwner)
	seedTestUser(t, db, h.ID, "b@example.com", RoleMember)

	n, err = repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestHouseholdRepository_CreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewHouseholdRepository(db)
	ctx := context.Background()

	h := &Household{Name: "Lakeside"}
	if err := repo.Create(ctx, h); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(h.ID, "hh-") {
		t.Errorf("ID = %q, want hh- prefix", h.ID)
	}

	got, err := repo.GetByID(ctx, h.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Lakeside" {
		t.Errorf("Name = %q, want %q", got.Name, "Lakeside")
	}
}

func TestHouseholdRepository_GetNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewHouseholdRepository(db)

	_, err := repo.GetByID(context.Background(), "hh-missing")
	if !errors.Is(err, ErrHouseholdNotFound) {
		t.Errorf("error = %v, want ErrHouseholdNotFound", err)
	}
}
