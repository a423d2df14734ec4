package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator"
	"github.com/sirupsen/logrus"

	"parksync/internal/auth"
	"parksync/internal/db"
	"parksync/internal/entities"
	apperrors "parksync/internal/errors"
	"parksync/internal/repository"
	"parksync/internal/utils"
)

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=80"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Phone    string `json:"phone" validate:"omitempty,e164"`
}

type AuthService struct {
	store    repository.Store
	tokens   *auth.TokenMaker
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewAuthService(store repository.Store, tokens *auth.TokenMaker, log logrus.FieldLogger) *AuthService {
	return &AuthService{store: store, tokens: tokens, validate: validator.New(), log: orLogger(log)}
}

// Register creates a customer account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*entities.UserResponse, error) {
	const op = "service.AuthService.Register"

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Struct(in); err != nil {
		return nil, apperrors.Validation(op, "invalid registration: %s", fieldNames(err))
	}

	user, err := s.createUser(ctx, op, in, false)
	if err != nil {
		return nil, err
	}
	s.log.WithField("user_id", user.ID).Info("user registered")
	return userResponse(user), nil
}

func (s *AuthService) createUser(ctx context.Context, op string, in RegisterInput, admin bool) (*db.User, error) {
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	user := &db.User{
		Username:     in.Username,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		IsAdmin:      admin,
	}
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.Conflict(op, "username or email already registered")
			}
			return apperrors.Internal(op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks the credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*entities.TokenResponse, error) {
	const op = "service.AuthService.Login"

	var user *db.User
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().GetByEmail(ctx, strings.TrimSpace(email))
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.Unauthenticated(op, "invalid credentials")
		}
		if err != nil {
			return apperrors.Internal(op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperrors.Unauthenticated(op, "invalid credentials")
	}

	token, err := s.tokens.Generate(auth.Actor{UserID: user.ID, Username: user.Username, Role: auth.RoleFor(user.IsAdmin)})
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	return &entities.TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
		IsAdmin:   user.IsAdmin,
	}, nil
}

// Me returns the account of the actor.
func (s *AuthService) Me(ctx context.Context, actor auth.Actor) (*entities.UserResponse, error) {
	const op = "service.AuthService.Me"

	var user *db.User
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().GetByID(ctx, actor.UserID)
		return storageErr(op, err, "user")
	})
	if err != nil {
		return nil, err
	}
	return userResponse(user), nil
}

// EnsureAdmin creates the administrator account unless one with the same
// email exists. It reports whether an account was created. The username must
// not belong to another account.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	const op = "service.AuthService.EnsureAdmin"

	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	var existing, sameName *db.User
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		existing, err = tx.Users().GetByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			existing = nil
		} else if err != nil {
			return storageErr(op, err, "user")
		}
		if existing != nil {
			return nil
		}
		sameName, err = tx.Users().GetByUsername(ctx, username)
		if errors.Is(err, repository.ErrNotFound) {
			sameName = nil
			return nil
		}
		return storageErr(op, err, "user")
	})
	if err != nil {
		return false, err
	}
	if existing != nil {
		if !existing.IsAdmin {
			return false, apperrors.Conflict(op, "%s is registered as a customer", email)
		}
		return false, nil
	}
	if sameName != nil {
		return false, apperrors.Conflict(op, "username %q is already taken by %s; choose another admin username", username, sameName.Email)
	}
	if password == "" {
		return false, apperrors.Validation(op, "admin password is required")
	}

	user, err := s.createUser(ctx, op, RegisterInput{Username: username, Email: email, Password: password}, true)
	if err != nil {
		return false, err
	}
	s.log.WithField("user_id", user.ID).Info("admin account created")
	return true, nil
}

func userResponse(u *db.User) *entities.UserResponse {
	return &entities.UserResponse{ID: u.ID, Username: u.Username, Email: u.Email, Phone: u.Phone, IsAdmin: u.IsAdmin}
}

func fieldNames(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		names = append(names, strings.ToLower(fe.Field()))
	}
	return strings.Join(names, ", ")
}
