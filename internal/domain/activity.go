package domain

import (
	"time"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
)

// Activity is the canonical activity row stored per tenant.
type Activity struct {
	ID           int64
	TenantID     string
	UserID       string
	Date         string
	ClientName   string
	ClientID     *int64
	ActivityKind attivita.Kind
	KM           float64
	Allowance    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Record converts the activity into its wire form.
func (a Activity) Record() attivita.Record {
	return attivita.Record{
		ID:           a.ID,
		UserID:       a.UserID,
		Date:         a.Date,
		ClientName:   a.ClientName,
		ClientID:     a.ClientID,
		ActivityKind: a.ActivityKind,
		KM:           a.KM,
		Allowance:    a.Allowance,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (a *Activity) apply(p attivita.Payload) {
	a.UserID = p.UserID
	a.Date = p.Date
	a.ClientName = p.ClientName
	a.ClientID = p.ClientID
	a.ActivityKind = p.ActivityKind
	a.KM = p.KM
	a.Allowance = p.Allowance
}

// Client is an entry of the customer registry offered by autocomplete.
type Client struct {
	ID       int64
	TenantID string
	Name     string
}
