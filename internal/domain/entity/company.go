package entity

import "time"

// Tipos de contraparte.
const (
	CompanyTypeCompany = "company"
	CompanyTypePerson  = "person"
)

// Company contraparte (empresa o persona) que puede asociarse a una operación de bóveda.
type Company struct {
	ID        string
	Name      string
	Type      string // company, person
	Contact   string
	Address   string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsValidCompanyType indica si t es company o person.
func IsValidCompanyType(t string) bool {
	return t == CompanyTypeCompany || t == CompanyTypePerson
}
