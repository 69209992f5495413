package catalog

import "fmt"

// RedeemCodes maps access codes to the plan they unlock.
var RedeemCodes = map[string]string{
	"1426":          "free",
	"6241":          "go",
	"4263":          "plus",
	"3624":          "pro",
	"2637":          "premium",
	"7362":          "pro-premium",
	"637":           "super-premium",
	"736":           "max",
	"37":            "super-max",
	"142637-736241": "full-max-premium",
}

// EnterpriseBuilderCode opens the enterprise configuration flow instead of
// unlocking a plan.
const EnterpriseBuilderCode = "root142637-37"

// Enterprise builder pricing.
const (
	BuilderBasePrice     = 55.0
	SeatPrice            = 5.0
	BrandingRemovalPrice = 1.0
)

var CodingPrices = map[CodingCapability]float64{
	CodingNone: 0,
	CodingHalf: 30,
	CodingFull: 77,
}

var SecurityPrices = map[SecurityLevel]float64{
	SecurityNone:    0,
	SecurityLow:     2,
	SecurityMedium:  3,
	SecurityHigh:    4,
	SecurityAdvance: 5,
}

// BuilderPrice computes the monthly total for an enterprise configuration.
func BuilderPrice(cfg CustomPlanConfig) float64 {
	price := BuilderBasePrice
	for _, id := range cfg.AllowedModels {
		if m, ok := ModelByID(id); ok {
			price += m.BuilderPrice
		}
	}
	price += CodingPrices[NormalizeCoding(cfg.CodingCapability)]
	price += SecurityPrices[cfg.SecurityLevel]
	if cfg.RemoveBranding {
		price += BrandingRemovalPrice
	}
	return price
}

// PurchaseCode returns the code that activates an enterprise configuration at
// the given total price.
func PurchaseCode(totalPrice float64) string {
	return fmt.Sprintf("EEE142637EEE%.0f", totalPrice)
}
