// internal/domain/tenant/dto.go
package tenant

type ProvisionRequest struct {
	Name         string `json:"name" binding:"required"`
	Slug         string `json:"slug" binding:"required"`
	ContactEmail string `json:"contact_email" binding:"required,email"`
	OwnerEmail   string `json:"owner_email" binding:"required,email"`
	OwnerName    string `json:"owner_name" binding:"required"`
	OwnerPass    string `json:"owner_password" binding:"required,min=8"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}
