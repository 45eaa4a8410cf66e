package dto

import "time"

// CreateCompanyRequest entrada para crear una contraparte.
type CreateCompanyRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=200"`
	Type    string `json:"type" validate:"omitempty,oneof=company person"`
	Contact string `json:"contact" validate:"max=200"`
	Address string `json:"address" validate:"max=300"`
	Notes   string `json:"notes" validate:"max=1000"`
}

// UpdateCompanyRequest entrada para actualizar una contraparte (campos opcionales).
type UpdateCompanyRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=200"`
	Type    *string `json:"type" validate:"omitempty,oneof=company person"`
	Contact *string `json:"contact" validate:"omitempty,max=200"`
	Address *string `json:"address" validate:"omitempty,max=300"`
	Notes   *string `json:"notes" validate:"omitempty,max=1000"`
}

// CompanyResponse salida de una contraparte.
type CompanyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Contact   string    `json:"contact"`
	Address   string    `json:"address"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CompanyListResponse lista paginada de contrapartes.
type CompanyListResponse struct {
	Items []CompanyResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}
