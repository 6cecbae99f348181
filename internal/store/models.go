package store

// User is a row of the users table as needed for login.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CompanyID    *string
	Role         string
}

// UserAccess is the (company, role) projection of a user used for
// authorization decisions.
type UserAccess struct {
	CompanyID *string
	Role      string
}

// ProjectRow is a project as stored: its identifier plus every column
// encoded as a JSON object.
type ProjectRow struct {
	ID    string
	Attrs []byte
}
