package blog

import (
	"context"
	"errors"
	"strings"

	userstore "github.com/dalemusser/stratablog/internal/app/store/users"
	"github.com/dalemusser/stratablog/internal/app/system/authutil"
	"github.com/dalemusser/stratablog/internal/app/system/inputval"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Identity owns user accounts and credential checks.
type Identity struct {
	users *userstore.Store
	log   *zap.Logger
}

// NewIdentity creates the identity service.
func NewIdentity(users *userstore.Store, log *zap.Logger) *Identity {
	return &Identity{users: users, log: log}
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Username  string `json:"username" validate:"required,username" label:"Username"`
	Email     string `json:"email" validate:"required,mailbox,max=254" label:"Email"`
	FirstName string `json:"first_name" validate:"required,max=100" label:"First name"`
	LastName  string `json:"last_name" validate:"required,max=100" label:"Last name"`
	Password  string `json:"password" validate:"required" label:"Password"`
}

func (in *RegisterInput) trim() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
}

// Register creates a non-admin account. Taken usernames and emails are
// checked up front and again by the unique indexes, so a concurrent loser
// still gets ErrDuplicateUsername or ErrDuplicateEmail.
func (i *Identity) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	in.trim()
	if res := inputval.Validate(in); res.HasErrors() {
		return models.User{}, invalidFields(res.Map())
	}
	if err := authutil.ValidatePassword(in.Password); err != nil {
		return models.User{}, invalid("password", authutil.PasswordRules())
	}

	taken, err := i.users.UsernameExists(ctx, in.Username)
	if err != nil {
		return models.User{}, transient(err)
	}
	if taken {
		return models.User{}, ErrDuplicateUsername
	}
	taken, err = i.users.EmailExists(ctx, in.Email)
	if err != nil {
		return models.User{}, transient(err)
	}
	if taken {
		return models.User{}, ErrDuplicateEmail
	}

	return i.create(ctx, in, false)
}

func (i *Identity) create(ctx context.Context, in RegisterInput, admin bool) (models.User, error) {
	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	u, err := i.users.Create(ctx, models.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		IsAdmin:      admin,
	})
	switch {
	case errors.Is(err, userstore.ErrDuplicateUsername):
		return models.User{}, ErrDuplicateUsername
	case errors.Is(err, userstore.ErrDuplicateEmail):
		return models.User{}, ErrDuplicateEmail
	case err != nil:
		return models.User{}, transient(err)
	}
	return u, nil
}

// Authenticate returns the user when username and password match, and nil
// otherwise. Unknown users and wrong passwords are indistinguishable, in the
// result and in timing. The error is non-nil only for storage failures.
func (i *Identity) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		authutil.DummyCheck(password)
		return nil, nil
	}
	u, err := i.users.GetByUsername(ctx, username)
	if errors.Is(err, mongo.ErrNoDocuments) {
		authutil.DummyCheck(password)
		return nil, nil
	}
	if err != nil {
		return nil, transient(err)
	}
	if !authutil.CheckPassword(password, u.PasswordHash) {
		return nil, nil
	}
	return u, nil
}

// Lookup returns the user with the given username, or nil. It does not check credentials.
func (i *Identity) Lookup(ctx context.Context, username string) (*models.User, error) {
	u, err := i.users.GetByUsername(ctx, username)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, transient(err)
	}
	return u, nil
}

// LoadByID returns the user or nil when it no longer exists.
func (i *Identity) LoadByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := i.users.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, transient(err)
	}
	return u, nil
}

// EnsureAdmin provisions the default administrator when no user named
// "admin" exists. It reports whether an account was created.
func (i *Identity) EnsureAdmin(ctx context.Context, password string) (models.User, bool, error) {
	existing, err := i.Lookup(ctx, models.DefaultAdminUsername)
	if err != nil {
		return models.User{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}
	if password == "" {
		password = models.DefaultAdminPassword
	}

	u, err := i.create(ctx, RegisterInput{
		Username:  models.DefaultAdminUsername,
		Email:     models.DefaultAdminEmail,
		FirstName: models.DefaultAdminFirstName,
		LastName:  models.DefaultAdminLastName,
		Password:  password,
	}, true)
	if errors.Is(err, ErrDuplicateUsername) {
		// Another instance provisioned it first.
		existing, lerr := i.Lookup(ctx, models.DefaultAdminUsername)
		if lerr != nil || existing == nil {
			return models.User{}, false, err
		}
		return *existing, false, nil
	}
	if err != nil {
		return models.User{}, false, err
	}
	if i.log != nil {
		i.log.Info("admin user created", zap.String("username", u.Username), zap.String("email", u.Email))
	}
	return u, true, nil
}

// SetAdmin grants or revokes the admin flag by username.
func (i *Identity) SetAdmin(ctx context.Context, username string, isAdmin bool) (models.User, error) {
	u, err := i.Lookup(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if u == nil {
		return models.User{}, ErrNotFound
	}
	if u.IsAdmin && !isAdmin {
		n, err := i.users.CountAdmins(ctx)
		if err != nil {
			return models.User{}, transient(err)
		}
		if n <= 1 {
			return models.User{}, ErrLastAdmin
		}
	}
	if err := i.users.SetAdmin(ctx, u.ID, isAdmin); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, transient(err)
	}
	u.IsAdmin = isAdmin
	return *u, nil
}

// SetPassword replaces a user's password after checking it against the
// password rules.
func (i *Identity) SetPassword(ctx context.Context, username, password string) (models.User, error) {
	if err := authutil.ValidatePassword(password); err != nil {
		return models.User{}, invalid("password", authutil.PasswordRules())
	}
	u, err := i.Lookup(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if u == nil {
		return models.User{}, ErrNotFound
	}
	hash, err := authutil.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	if err := i.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, transient(err)
	}
	if i.log != nil {
		i.log.Info("password changed", zap.String("username", u.Username))
	}
	u.PasswordHash = hash
	return *u, nil
}
