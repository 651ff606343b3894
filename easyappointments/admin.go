package easyappointments

// AdminSettings holds the account settings of an admin user.
type AdminSettings struct {
	Username      string `json:"username" validate:"required"`
	Password      string `json:"password,omitempty"`
	Notifications bool   `json:"notifications"`
	CalendarView  string `json:"calendarView,omitempty" validate:"omitempty,oneof=default table"`
}

// Admin represents an admin user.
type Admin struct {
	ID        int64          `json:"id,omitempty"`
	FirstName string         `json:"firstName" validate:"required"`
	LastName  string         `json:"lastName" validate:"required"`
	Email     string         `json:"email" validate:"required,email"`
	Mobile    string         `json:"mobile,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	Address   string         `json:"address,omitempty"`
	City      string         `json:"city,omitempty"`
	State     string         `json:"state,omitempty"`
	Zip       string         `json:"zip,omitempty"`
	Notes     string         `json:"notes,omitempty"`
	Timezone  string         `json:"timezone" validate:"required"`
	Language  string         `json:"language" validate:"required"`
	LDAPDN    string         `json:"ldapDn,omitempty"`
	Settings  *AdminSettings `json:"settings" validate:"required"`
}

// FullName returns the admin's first and last name.
func (a *Admin) FullName() string {
	return joinName(a.FirstName, a.LastName)
}

func (a *Admin) resourceID() int64 { return a.ID }
func (a *Admin) clearID()          { a.ID = 0 }

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

// AdminsService manages admin users at /admins.
type AdminsService struct {
	*ResourceService[Admin, *Admin]
}
