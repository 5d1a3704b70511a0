package transport

type CartLine struct {
	Product  string `json:"product"`
	Quantity int64  `json:"quantity"`
}

type ShippingAddress struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	Country   string `json:"country"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
}

// CreateOrderRequest is the POST /api/orders body. UserID is optional and,
// when sent, must equal the authenticated subject.
type CreateOrderRequest struct {
	Items           []CartLine      `json:"items"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	UserID          string          `json:"userId,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type FieldErrorsResponse struct {
	Errors []FieldError `json:"errors"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
