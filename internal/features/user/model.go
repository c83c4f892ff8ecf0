package user

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/pkg/types"
)

// User represents a system user.
type User struct {
	types.BaseModel

	FullName string         `gorm:"type:varchar(60);not null;column:full_name" json:"fullName"`
	Email    string         `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Password string         `gorm:"type:varchar(255);not null" json:"-"`
	UserType types.UserType `gorm:"type:varchar(20);not null;default:'student';column:user_type;index" json:"userType"`
	Active   bool           `gorm:"type:boolean;not null;default:true;column:is_active;index" json:"isActive"`
}

// TableName overrides the default table name.
func (User) TableName() string { return "users" }

// CreateInput carries data for creating a new user.
type CreateInput struct {
	FullName string
	Email    string
	Password string
	UserType types.UserType
}

// Get retrieves a user by ID.
func Get(db *gorm.DB, id uuid.UUID) (User, error) {
	var u User
	if err := db.First(&u, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return u, ErrUserNotFound
		}
		return u, err
	}
	return u, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func GetByEmail(db *gorm.DB, email string) (User, error) {
	var u User
	if err := db.First(&u, "LOWER(email) = ?", strings.ToLower(email)).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return u, ErrUserNotFound
		}
		return u, err
	}
	return u, nil
}

// Create inserts a new user with a hashed password.
func Create(db *gorm.DB, input CreateInput) (User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return User{}, ErrEmailRequired
	}
	if len(input.Password) < 8 {
		return User{}, ErrInvalidPassword
	}

	var existing User
	err := db.First(&existing, "LOWER(email) = ?", email).Error
	if err == nil {
		return User{}, ErrEmailTaken
	}
	if err != gorm.ErrRecordNotFound {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	userType := input.UserType
	if userType == "" {
		userType = types.UserTypeStudent
	}

	u := User{
		FullName: strings.TrimSpace(input.FullName),
		Email:    email,
		Password: string(hash),
		UserType: userType,
		Active:   true,
	}
	if err := db.Create(&u).Error; err != nil {
		return User{}, err
	}
	return u, nil
}

// CheckPassword compares a plaintext password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// IsStudent reports whether the user holds the student role.
func (u *User) IsStudent() bool { return u.UserType == types.UserTypeStudent }

// IsStaff reports whether the user may review access requests.
func (u *User) IsStaff() bool {
	return u.UserType == types.UserTypeAdmin || u.UserType == types.UserTypeSuperAdmin
}
