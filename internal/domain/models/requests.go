package models

// SignalsRequest filters the tracked-signal listing.
type SignalsRequest struct {
	Symbol    string `query:"symbol" validate:"omitempty,max=20"`
	Direction string `query:"direction" validate:"omitempty,oneof=long short"`
	Phase     string `query:"phase" validate:"omitempty,max=32"`
	Limit     int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

// SignalRequest addresses a single tracked signal.
type SignalRequest struct {
	ID int64 `param:"id" validate:"required,gt=0"`
}
