// internal/domain/subscription/dto.go
package subscription

type ActivateSubscriptionRequest struct {
	PaymentID string  `json:"payment_id" binding:"omitempty,max=128"`
	Amount    float64 `json:"amount" binding:"omitempty,gt=0"`
}

type AddPaymentRequest struct {
	ID            string        `json:"id" binding:"required,max=128"`
	Amount        float64       `json:"amount" binding:"required,gt=0"`
	Currency      string        `json:"currency" binding:"omitempty,len=3"`
	Status        PaymentStatus `json:"status" binding:"required,oneof=pending completed failed refunded"`
	PaymentMethod string        `json:"payment_method" binding:"omitempty,max=64"`
	TransactionID string        `json:"transaction_id" binding:"omitempty,max=128"`
}

type SubscriptionResponse struct {
	Identity string  `json:"identity"`
	Record   *Record `json:"record"`
	Access   Access  `json:"access"`
}

type PaymentListResponse struct {
	Payments []Payment `json:"payments"`
	Total    int       `json:"total"`
}

type BulkLookupResponse struct {
	Subscriptions map[string]SubscriptionResponse `json:"subscriptions"`
	Missing       []string                        `json:"missing"`
}
