package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aichat/log"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const MinPasswordLength = 6

type User struct {
	ID        string    `json:"uid"`
	Email     string    `json:"email"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"createdAt"`
}

// Provider resolves credentials into users.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*User, error)
	SignUp(ctx context.Context, email, password string) (*User, error)
	// User returns nil, nil when id is unknown.
	User(ctx context.Context, id string) (*User, error)
}

type userRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Disabled     bool
	CreatedAt    time.Time
}

func (userRow) TableName() string {
	return "users"
}

func (r *userRow) toUser() *User {
	return &User{ID: r.ID, Email: r.Email, Disabled: r.Disabled, CreatedAt: r.CreatedAt}
}

// SQLProvider stores users with bcrypt hashed passwords.
type SQLProvider struct {
	db       *gorm.DB
	validate *validator.Validate
	cost     int
}

func NewSQLProvider(gdb *gorm.DB) (*SQLProvider, error) {
	if err := gdb.AutoMigrate(&userRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate user schema: %w", err)
	}
	return &SQLProvider{db: gdb, validate: validator.New(), cost: bcrypt.DefaultCost}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *SQLProvider) checkEmail(email string) error {
	if err := p.validate.Var(email, "required,email"); err != nil {
		return newError(KindInvalidEmail, err)
	}
	return nil
}

func (p *SQLProvider) SignUp(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if err := p.checkEmail(email); err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, newError(KindWeakPassword, nil)
	}
	var count int64
	if err := p.db.WithContext(ctx).Model(&userRow{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, newError(KindNetworkRequestFailed, err)
	}
	if count > 0 {
		return nil, newError(KindEmailInUse, nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, newError(KindUnknown, err)
	}
	row := userRow{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, newError(KindNetworkRequestFailed, err)
	}
	log.Infow("user signed up", "uid", row.ID)
	return row.toUser(), nil
}

func (p *SQLProvider) SignIn(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if err := p.checkEmail(email); err != nil {
		return nil, err
	}
	var row userRow
	err := p.db.WithContext(ctx).Where("email = ?", email).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(KindUserNotFound, nil)
	}
	if err != nil {
		return nil, newError(KindNetworkRequestFailed, err)
	}
	if row.Disabled {
		return nil, newError(KindUserDisabled, nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)); err != nil {
		return nil, newError(KindWrongPassword, nil)
	}
	return row.toUser(), nil
}

func (p *SQLProvider) User(ctx context.Context, id string) (*User, error) {
	var row userRow
	err := p.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, newError(KindNetworkRequestFailed, err)
	}
	return row.toUser(), nil
}

// SetDisabled toggles an account.
func (p *SQLProvider) SetDisabled(ctx context.Context, id string, disabled bool) error {
	res := p.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Update("disabled", disabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return newError(KindUserNotFound, nil)
	}
	return nil
}
