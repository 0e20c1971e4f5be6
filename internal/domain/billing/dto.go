// internal/domain/billing/dto.go
package billing

type SubscribeRequest struct {
	PlanID int64  `json:"plan_id" binding:"required"`
	Phone  string `json:"phone" binding:"required"`
}

type SubscribeResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Carrier   string `json:"carrier,omitempty"`
}

type ConfirmResponse struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}
