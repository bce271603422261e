package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/partypay/pkg/types"
)

// User, Service and Offer are owned by the marketplace CRUD services; payments only read them.

type User struct {
	ID        string         `gorm:"column:id;primary_key;type:varchar(64)" json:"id"`
	Email     string         `gorm:"column:email;type:varchar(255);not null" json:"email"`
	Name      string         `gorm:"column:name;type:varchar(255)" json:"name"`
	Role      types.UserRole `gorm:"column:role;type:varchar(32);not null" json:"role"`
	CreatedAt time.Time      `json:"created_at"`
}

func (User) TableName() string { return "user" }

type Service struct {
	ID         string          `gorm:"column:id;primary_key;type:varchar(64)" json:"id"`
	ProviderID string          `gorm:"column:provider_id;type:varchar(64);not null;index" json:"provider_id"`
	Name       string          `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	PriceUnit  types.PriceUnit `gorm:"column:price_unit;type:varchar(16);not null;default:'fixed'" json:"price_unit"`
	Currency   string          `gorm:"column:currency;type:varchar(8)" json:"currency"`
	Active     bool            `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (Service) TableName() string { return "service" }

type Offer struct {
	ID           string          `gorm:"column:id;primary_key;type:varchar(64)" json:"id"`
	ClientID     string          `gorm:"column:client_id;type:varchar(64);not null;index" json:"client_id"`
	ProviderID   string          `gorm:"column:provider_id;type:varchar(64);not null;index" json:"provider_id"`
	ServiceID    string          `gorm:"column:service_id;type:varchar(64);not null" json:"service_id"`
	BookingDate  *time.Time      `gorm:"column:booking_date" json:"booking_date"`
	Hours        decimal.Decimal `gorm:"column:hours;type:numeric(6,2)" json:"hours"`
	Address      string          `gorm:"column:address;type:text" json:"address"`
	Comments     string          `gorm:"column:comments;type:text" json:"comments"`
	ContactPhone string          `gorm:"column:contact_phone;type:varchar(64)" json:"contact_phone"`
	GuestCount   int             `gorm:"column:guest_count" json:"guest_count"`
	// Price is the agreed service amount before fees.
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

func (Offer) TableName() string { return "offer" }
