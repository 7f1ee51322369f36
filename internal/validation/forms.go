// Package validation holds the form structs bound from request bodies and
// their field-level validation rules. Error messages are the exact strings
// rendered to end users, so tests assert on them verbatim.
package validation

import (
	"regexp"
	"strings"
)

const (
	// FormLevelKey indexes errors that belong to the whole form rather than
	// a single field.
	FormLevelKey = "__all__"

	maxTextLength = 255
	maxNameLength = 30

	msgMaxLength = "255 characters is maximum allowed."
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// FieldErrors maps a field name to its validation message.
type FieldErrors map[string]string

// OK reports whether the form passed validation.
func (fe FieldErrors) OK() bool { return len(fe) == 0 }

// Add records a message for a field, keeping the first message when a field
// fails more than one rule.
func (fe FieldErrors) Add(field, message string) {
	if _, exists := fe[field]; !exists {
		fe[field] = message
	}
}

// ValidEmail reports whether s looks like an e-mail address.
func ValidEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// PostForm carries the fields of the bulletin post create and edit forms.
type PostForm struct {
	Title       string `form:"title"`
	Description string `form:"description"`
	StatusBox   bool   `form:"post_status"`
}

// Validate checks the post form and returns per-field messages.
func (f *PostForm) Validate() FieldErrors {
	fe := FieldErrors{}
	if strings.TrimSpace(f.Title) == "" {
		fe.Add("title", "Title can't be blank")
	} else if len(f.Title) > maxTextLength {
		fe.Add("title", msgMaxLength)
	}
	if strings.TrimSpace(f.Description) == "" {
		fe.Add("description", "Description can't be blank")
	} else if len(f.Description) > maxTextLength {
		fe.Add("description", msgMaxLength)
	}
	return fe
}

// UserCreateForm carries the fields of the member registration form.
type UserCreateForm struct {
	Name            string `form:"name"`
	Email           string `form:"email"`
	Password        string `form:"password"`
	PasswordConfirm string `form:"password_confirm"`
	Type            string `form:"type"`
	Phone           string `form:"phone"`
	DOB             string `form:"dob"`
	Address         string `form:"address"`
}

// Validate checks the member registration form.
func (f *UserCreateForm) Validate() FieldErrors {
	fe := FieldErrors{}
	if strings.TrimSpace(f.Name) == "" {
		fe.Add("name", "Name can't be blank")
	} else if len(f.Name) > maxNameLength {
		fe.Add("name", "30 characters is maximum allowed.")
	}
	if strings.TrimSpace(f.Email) == "" {
		fe.Add("email", "E-Mail can't be blank")
	} else if !ValidEmail(f.Email) {
		fe.Add("email", "E-Mail format is invalid.")
	}
	if f.Password == "" {
		fe.Add("password", "Password can't be blank")
	}
	if f.PasswordConfirm == "" {
		fe.Add("password_confirm", "Password confirmation can't be blank")
	}
	if f.Password != "" && f.PasswordConfirm != "" && f.Password != f.PasswordConfirm {
		fe.Add(FormLevelKey, "password and password confirmation must be match.")
	}
	return fe
}

// UserEditForm carries the editable fields of an existing member. Password is
// not editable here, so only identity fields are checked.
type UserEditForm struct {
	Name    string `form:"name"`
	Email   string `form:"email"`
	Type    string `form:"type"`
	Phone   string `form:"phone"`
	DOB     string `form:"dob"`
	Address string `form:"address"`
}

// Validate checks the member edit form.
func (f *UserEditForm) Validate() FieldErrors {
	fe := FieldErrors{}
	if strings.TrimSpace(f.Name) == "" {
		fe.Add("name", "Name can't be blank")
	} else if len(f.Name) > maxNameLength {
		fe.Add("name", "30 characters is maximum allowed.")
	}
	if strings.TrimSpace(f.Email) == "" {
		fe.Add("email", "E-Mail can't be blank")
	} else if !ValidEmail(f.Email) {
		fe.Add("email", "E-Mail format is invalid.")
	}
	return fe
}

// PasswordResetForm carries the change-password fields.
type PasswordResetForm struct {
	CurrentPassword    string `form:"password"`
	NewPassword        string `form:"new_password"`
	NewPasswordConfirm string `form:"new_password_confirm"`
}

// Validate checks the change-password form.
func (f *PasswordResetForm) Validate() FieldErrors {
	fe := FieldErrors{}
	if f.CurrentPassword == "" {
		fe.Add("password", "Password can't be blank")
	}
	if f.NewPassword == "" {
		fe.Add("new_password", "New password can't be blank")
	}
	if f.NewPasswordConfirm == "" {
		fe.Add("new_password_confirm", "New confirm password can't be blank")
	}
	if f.NewPassword != "" && f.NewPasswordConfirm != "" && f.NewPassword != f.NewPasswordConfirm {
		fe.Add("new_password_confirm", "New password and new password confirmation is not match.")
	}
	return fe
}

// SignupForm carries the self-service signup fields.
type SignupForm struct {
	Name            string `form:"name"`
	Email           string `form:"email"`
	Password        string `form:"password"`
	PasswordConfirm string `form:"password_confirm"`
}

// Validate checks the signup form.
func (f *SignupForm) Validate() FieldErrors {
	fe := FieldErrors{}
	if strings.TrimSpace(f.Name) == "" {
		fe.Add("name", "Name can't be blank")
	}
	if strings.TrimSpace(f.Email) == "" {
		fe.Add("email", "E-Mail can't be blank")
	} else if !ValidEmail(f.Email) {
		fe.Add("email", "E-Mail format is invalid.")
	}
	if f.Password == "" {
		fe.Add("password", "Password can't be blank")
	}
	if f.PasswordConfirm == "" {
		fe.Add("password_confirm", "Password confirmation can't be blank")
	}
	if f.Password != "" && f.PasswordConfirm != "" && f.Password != f.PasswordConfirm {
		fe.Add(FormLevelKey, "password and password confirmation must be match.")
	}
	return fe
}

// LoginForm carries the login credentials.
type LoginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

// Validate checks that both credentials are present.
func (f *LoginForm) Validate() FieldErrors {
	fe := FieldErrors{}
	if strings.TrimSpace(f.Email) == "" {
		fe.Add("email", "E-Mail can't be blank")
	}
	if f.Password == "" {
		fe.Add("password", "Password can't be blank")
	}
	return fe
}

// PostSearchForm carries the post list filter fields.
type PostSearchForm struct {
	Keyword string `form:"keyword" query:"keyword"`
	Page    int    `form:"page" query:"page"`
}

// UserSearchForm carries the member list filter fields.
type UserSearchForm struct {
	Name     string `form:"name" query:"name"`
	Email    string `form:"email" query:"email"`
	FromDate string `form:"from_date" query:"from_date"`
	ToDate   string `form:"to_date" query:"to_date"`
	Page     int    `form:"page" query:"page"`
}
