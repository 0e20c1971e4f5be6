// internal/domain/voucher/dto.go
package voucher

// CatalogItem is a storefront entry: the package plus how many units
// remain claimable.
type CatalogItem struct {
	*WifiPackage
	Available int `json:"available"`
}

type PurchaseRequest struct {
	PackageID int64  `json:"package_id" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
}

type PurchaseResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Carrier   string `json:"carrier,omitempty"`
}

type PurchaseStatusResponse struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Credentials is the post-success read payload: the purchased voucher.
type Credentials struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	PackageName   string `json:"package_name,omitempty"`
	DurationHours int    `json:"duration_hours,omitempty"`
}
