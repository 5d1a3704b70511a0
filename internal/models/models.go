package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCard           PaymentMethod = "card"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
)

const DefaultPaymentMethod = PaymentCashOnDelivery

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCashOnDelivery, PaymentCard, PaymentBankTransfer:
		return true
	default:
		return false
	}
}

// Product is owned by the catalog. The order service only ever decrements Stock;
// InStock tracks Stock > 0 on every decrement.
type Product struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey"          json:"id"`
	Title         string           `gorm:"not null"                      json:"title"`
	Author        string           `gorm:"not null"                      json:"author"`
	Description   string           `                                     json:"description,omitempty"`
	Price         decimal.Decimal  `gorm:"type:numeric(12,2);not null"   json:"price"`
	OriginalPrice *decimal.Decimal `gorm:"type:numeric(12,2)"            json:"originalPrice,omitempty"`
	Category      string           `                                     json:"category,omitempty"`
	Image         string           `                                     json:"image,omitempty"`
	Stock         int64            `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	InStock       bool             `gorm:"not null"                      json:"inStock"`
	CreatedAt     time.Time        `                                     json:"createdAt"`
	UpdatedAt     time.Time        `                                     json:"updatedAt"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (Product) TableName() string {
	return "products"
}

type ShippingAddress struct {
	FirstName string `gorm:"column:first_name;not null" json:"firstName"`
	LastName  string `gorm:"column:last_name;not null"  json:"lastName"`
	Email     string `gorm:"column:email;not null"      json:"email"`
	Address   string `gorm:"column:address;not null"    json:"address"`
	Country   string `gorm:"column:country;not null"    json:"country"`
	State     string `gorm:"column:state;not null"      json:"state"`
	Zip       string `gorm:"column:zip;not null"        json:"zip"`
}

// OrderItem is immutable once persisted. Price is the unit price read while
// the stock for this line was reserved.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"                 json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;index;not null"             json:"-"`
	Position  int             `gorm:"not null"                             json:"-"`
	ProductID uuid.UUID       `gorm:"type:uuid;index;not null"             json:"productId"`
	Product   *Product        `gorm:"foreignKey:ProductID;references:ID"   json:"product,omitempty"`
	Quantity  int64           `gorm:"not null;check:quantity > 0"          json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null"          json:"price"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}

type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"                 json:"id"`
	UserID          string          `gorm:"index;not null"                       json:"user"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID;references:ID"     json:"items"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null"          json:"totalAmount"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:ship_"        json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `gorm:"not null"                             json:"paymentMethod"`
	Status          OrderStatus     `gorm:"index;not null"                       json:"status"`
	CreatedAt       time.Time       `gorm:"index"                                json:"createdAt"`
	UpdatedAt       time.Time       `                                            json:"updatedAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (Order) TableName() string {
	return "orders"
}

// IdempotencyKey binds a client key to the order it produced. Written in the
// same transaction as the order.
type IdempotencyKey struct {
	UserID      string    `gorm:"primaryKey"             json:"userId"`
	Key         string    `gorm:"column:idem_key;primaryKey" json:"key"`
	RequestHash string    `gorm:"not null"               json:"requestHash"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null"     json:"orderId"`
	CreatedAt   time.Time `                              json:"createdAt"`
}

func (IdempotencyKey) TableName() string {
	return "idempotency_keys"
}

func All() []any {
	return []any{&Product{}, &Order{}, &OrderItem{}, &IdempotencyKey{}}
}
