package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/transport"
)

const (
	maxCartLines         = 100
	maxIdempotencyKeyLen = 128
)

type cartLine struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int64     `json:"quantity"`
}

// placement is a validated, normalized order request.
type placement struct {
	Lines   []cartLine             `json:"lines"`
	Address models.ShippingAddress `json:"address"`
	Payment models.PaymentMethod   `json:"payment"`
}

func validatePlacement(req transport.CreateOrderRequest) (*placement, error) {
	verr := &ValidationError{}
	p := &placement{}

	switch {
	case len(req.Items) == 0:
		verr.add("items", "at least one item is required")
	case len(req.Items) > maxCartLines:
		verr.add("items", fmt.Sprintf("at most %d items are allowed", maxCartLines))
	}

	for i, it := range req.Items {
		id, err := uuid.Parse(strings.TrimSpace(it.Product))
		if err != nil || id == uuid.Nil {
			verr.add(fmt.Sprintf("items[%d].product", i), "invalid product id")
		}
		if it.Quantity < 1 {
			verr.add(fmt.Sprintf("items[%d].quantity", i), "quantity must be an integer >= 1")
		}
		p.Lines = append(p.Lines, cartLine{ProductID: id, Quantity: it.Quantity})
	}

	p.Address = normalizeAddress(req.ShippingAddress, verr)

	p.Payment = models.DefaultPaymentMethod
	if pm := strings.TrimSpace(req.PaymentMethod); pm != "" {
		p.Payment = models.PaymentMethod(strings.ToLower(pm))
		if !p.Payment.Valid() {
			verr.add("paymentMethod", "unsupported payment method")
		}
	}

	if !verr.empty() {
		return nil, verr
	}
	return p, nil
}

func normalizeAddress(in transport.ShippingAddress, verr *ValidationError) models.ShippingAddress {
	out := models.ShippingAddress{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Address:   strings.TrimSpace(in.Address),
		Country:   strings.TrimSpace(in.Country),
		State:     strings.TrimSpace(in.State),
		Zip:       strings.TrimSpace(in.Zip),
	}

	required := []struct {
		field string
		value string
	}{
		{"shippingAddress.firstName", out.FirstName},
		{"shippingAddress.lastName", out.LastName},
		{"shippingAddress.address", out.Address},
		{"shippingAddress.country", out.Country},
		{"shippingAddress.state", out.State},
		{"shippingAddress.zip", out.Zip},
	}
	for _, r := range required {
		if r.value == "" {
			verr.add(r.field, "is required")
		}
	}

	email, ok := normalizeEmail(in.Email)
	if !ok {
		verr.add("shippingAddress.email", "invalid email")
	}
	out.Email = email
	return out
}

// normalizeEmail accepts a bare address and lowercases it. Gmail addresses
// also lose dots and "+tag" suffixes in the local part.
func normalizeEmail(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return "", false
	}

	at := strings.LastIndex(s, "@")
	local, domain := strings.ToLower(s[:at]), strings.ToLower(s[at+1:])
	if !strings.Contains(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", false
	}

	if domain == "gmail.com" || domain == "googlemail.com" {
		if i := strings.IndexByte(local, '+'); i >= 0 {
			local = local[:i]
		}
		local = strings.ReplaceAll(local, ".", "")
		if local == "" {
			return "", false
		}
		domain = "gmail.com"
	}
	return local + "@" + domain, true
}

func validateIdempotencyKey(key string) error {
	if len(key) > maxIdempotencyKeyLen {
		verr := &ValidationError{}
		verr.add("Idempotency-Key", fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLen))
		return verr
	}
	return nil
}

func (p *placement) hash() string {
	data, _ := json.Marshal(p)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
