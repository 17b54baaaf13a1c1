package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/meridian-bank/internal/domain"
)

func TestUserService_Register(t *testing.T) {
	tests := []struct {
		name      string
		input     RegisterInput
		wantErr   error
		setupRepo func(*MockUserRepository)
	}{
		{
			name: "success regular",
			input: RegisterInput{
				Username: "alice",
				Email:    "alice@example.com",
				Password: "hunter2hunter2",
				Role:     domain.RoleRegular,
			},
		},
		{
			name: "success employee",
			input: RegisterInput{
				Username: "teller",
				Email:    "teller@meridian.example",
				Password: "hunter2hunter2",
				Role:     domain.RoleEmployee,
			},
		},
		{
			name: "username too short",
			input: RegisterInput{
				Username: "al",
				Email:    "alice@example.com",
				Password: "hunter2hunter2",
				Role:     domain.RoleRegular,
			},
			wantErr: ErrInvalidUsername,
		},
		{
			name: "bad email",
			input: RegisterInput{
				Username: "alice",
				Email:    "not-an-email",
				Password: "hunter2hunter2",
				Role:     domain.RoleRegular,
			},
			wantErr: ErrInvalidEmail,
		},
		{
			name: "short password",
			input: RegisterInput{
				Username: "alice",
				Email:    "alice@example.com",
				Password: "short",
				Role:     domain.RoleRegular,
			},
			wantErr: ErrInvalidPassword,
		},
		{
			name: "unknown role",
			input: RegisterInput{
				Username: "alice",
				Email:    "alice@example.com",
				Password: "hunter2hunter2",
				Role:     domain.Role("SUPERVISOR"),
			},
			wantErr: ErrInvalidRole,
		},
		{
			name: "duplicate username",
			input: RegisterInput{
				Username: "alice",
				Email:    "other@example.com",
				Password: "hunter2hunter2",
				Role:     domain.RoleRegular,
			},
			wantErr: domain.ErrUserAlreadyExists,
			setupRepo: func(m *MockUserRepository) {
				m.users[1] = &domain.User{ID: 1, Username: "alice", Email: "alice@example.com"}
			},
		},
		{
			name: "duplicate email",
			input: RegisterInput{
				Username: "alice2",
				Email:    "alice@example.com",
				Password: "hunter2hunter2",
				Role:     domain.RoleRegular,
			},
			wantErr: domain.ErrUserAlreadyExists,
			setupRepo: func(m *MockUserRepository) {
				m.users[1] = &domain.User{ID: 1, Username: "alice", Email: "alice@example.com"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockUserRepository()
			if tt.setupRepo != nil {
				tt.setupRepo(repo)
			}

			svc := NewUserService(repo, zerolog.Nop())
			output, err := svc.Register(context.Background(), tt.input)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if output.User.ID == 0 {
				t.Error("expected assigned user ID")
			}
			if !output.User.IsActive {
				t.Error("new users must be active")
			}
			if output.User.PasswordHash == tt.input.Password {
				t.Error("password must be hashed")
			}
		})
	}
}

func TestUserService_Authenticate(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)

	repo := NewMockUserRepository()
	repo.users[1] = &domain.User{
		ID: 1, Username: "alice", Email: "alice@example.com",
		PasswordHash: string(hash), Role: domain.RoleRegular, IsActive: true,
	}
	repo.users[2] = &domain.User{
		ID: 2, Username: "mallory", Email: "mallory@example.com",
		PasswordHash: string(hash), Role: domain.RoleRegular, IsActive: false,
	}

	svc := NewUserService(repo, zerolog.Nop())
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		user, err := svc.Authenticate(ctx, "alice", "correct-horse")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.ID != 1 {
			t.Errorf("expected user 1, got %d", user.ID)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "alice", "wrong")
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown username looks like bad credentials", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "nobody", "whatever")
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("inactive user", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "mallory", "correct-horse")
		if !errors.Is(err, domain.ErrUserInactive) {
			t.Errorf("expected ErrUserInactive, got %v", err)
		}
	})
}

func TestUserService_Update(t *testing.T) {
	ctx := context.Background()

	newRepo := func() *MockUserRepository {
		repo := NewMockUserRepository()
		repo.users[1] = &domain.User{
			ID: 1, Username: "alice", Email: "alice@example.com",
			Role: domain.RoleRegular, IsActive: true,
		}
		repo.users[2] = &domain.User{
			ID: 2, Username: "bob", Email: "bob@example.com",
			Role: domain.RoleRegular, IsActive: true,
		}
		repo.nextID = 3
		return repo
	}

	t.Run("partial update leaves other fields alone", func(t *testing.T) {
		svc := NewUserService(newRepo(), zerolog.Nop())
		first := "Alice"
		user, err := svc.Update(ctx, 1, UpdateUserInput{FirstName: &first})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.FirstName != "Alice" {
			t.Errorf("expected first name set, got %q", user.FirstName)
		}
		if user.Username != "alice" {
			t.Errorf("username must be unchanged, got %q", user.Username)
		}
	})

	t.Run("username collision", func(t *testing.T) {
		svc := NewUserService(newRepo(), zerolog.Nop())
		taken := "bob"
		_, err := svc.Update(ctx, 1, UpdateUserInput{Username: &taken})
		if !errors.Is(err, domain.ErrUserAlreadyExists) {
			t.Errorf("expected ErrUserAlreadyExists, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		svc := NewUserService(newRepo(), zerolog.Nop())
		first := "X"
		_, err := svc.Update(ctx, 99, UpdateUserInput{FirstName: &first})
		if !errors.Is(err, domain.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewMockUserRepository()
	repo.users[1] = &domain.User{ID: 1, Username: "alice", Email: "alice@example.com", IsActive: true}
	svc := NewUserService(repo, zerolog.Nop())

	if err := svc.Delete(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.users[1].IsActive {
		t.Error("delete must deactivate, not remove")
	}

	// Deleting again is a no-op.
	if err := svc.Delete(ctx, 1); err != nil {
		t.Errorf("second delete must be idempotent, got %v", err)
	}

	if err := svc.Delete(ctx, 42); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
