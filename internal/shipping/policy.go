package shipping

// Policy quotes a single order-level shipping fee for a cart. The fee is
// computed once per order, not per line item.
type Policy interface {
	Fee(subtotal int64, destination string) int64
}

// Tiered is the default policy: flat fee below the free-shipping threshold,
// surcharge for non-domestic destinations, free above the threshold.
type Tiered struct {
	BaseFee           int64
	RemoteSurcharge   int64
	FreeAboveSubtotal int64
}

// NewDefaultPolicy returns the platform tariff.
func NewDefaultPolicy() *Tiered {
	return &Tiered{
		BaseFee:           3000,
		RemoteSurcharge:   3000,
		FreeAboveSubtotal: 50000,
	}
}

func (t *Tiered) Fee(subtotal int64, destination string) int64 {
	if subtotal <= 0 {
		return 0
	}
	if subtotal >= t.FreeAboveSubtotal {
		return 0
	}
	fee := t.BaseFee
	if destination != "" && destination != "domestic" {
		fee += t.RemoteSurcharge
	}
	return fee
}
