package suppliers

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Supplier is one reconciled billing line
type Supplier struct {
	ID                            string          `json:"id"`
	PartnerID                     string          `json:"partnerId"`
	PartnerName                   string          `json:"partnerName"`
	CustomerName                  string          `json:"customerName"`
	CustomerDomainName            string          `json:"customerDomainName"`
	MpnID                         string          `json:"mpnId"`
	InvoiceNumber                 string          `json:"invoiceNumber"`
	ProductID                     string          `json:"productId"`
	SkuID                         string          `json:"skuId"`
	AvailabilityID                string          `json:"availabilityId"`
	SkuName                       string          `json:"skuName"`
	ProductName                   string          `json:"productName"`
	PublisherName                 string          `json:"publisherName"`
	PublisherID                   string          `json:"publisherId"`
	SubscriptionDescription       string          `json:"subscriptionDescription"`
	SubscriptionID                string          `json:"subscriptionId"`
	ChargeStartDate               string          `json:"chargeStartDate"`
	ChargeEndDate                 string          `json:"chargeEndDate"`
	UsageDate                     string          `json:"usageDate"`
	MeterType                     string          `json:"meterType"`
	MeterCategory                 string          `json:"meterCategory"`
	MeterID                       string          `json:"meterId"`
	MeterName                     string          `json:"meterName"`
	MeterRegion                   string          `json:"meterRegion"`
	Unit                          string          `json:"unit"`
	ResourceLocation              string          `json:"resourceLocation"`
	ConsumedService               string          `json:"consumedService"`
	ResourceGroup                 string          `json:"resourceGroup"`
	ResourceURI                   string          `json:"resourceURI"`
	ChargeType                    string          `json:"chargeType"`
	UnitPrice                     decimal.Decimal `json:"unitPrice"`
	Quantity                      decimal.Decimal `json:"quantity"`
	UnitType                      string          `json:"unitType"`
	BillingPreTaxTotal            decimal.Decimal `json:"billingPreTaxTotal"`
	BillingCurrency               string          `json:"billingCurrency"`
	PricingPreTaxTotal            decimal.Decimal `json:"pricingPreTaxTotal"`
	PricingCurrency               string          `json:"pricingCurrency"`
	ServiceInfo1                  string          `json:"serviceInfo1"`
	ServiceInfo2                  string          `json:"serviceInfo2"`
	Tags                          json.RawMessage `json:"tags,omitempty"`
	AdditionalInfo                json.RawMessage `json:"additionalInfo,omitempty"`
	EffectiveUnitPrice            decimal.Decimal `json:"effectiveUnitPrice"`
	PCToBCExchangeRate            decimal.Decimal `json:"pctoBCExchangeRate"`
	PCToBCExchangeRateDate        string          `json:"pctoBCExchangeRateDate"`
	EntitlementID                 string          `json:"entitlementId"`
	EntitlementDescription        string          `json:"entitlementDescription"`
	PartnerEarnedCreditPercentage decimal.Decimal `json:"partnerEarnedCreditPercentage"`
	CreditPercentage              decimal.Decimal `json:"creditPercentage"`
	CreditType                    string          `json:"creditType"`
	BenefitOrderID                string          `json:"benefitOrderId"`
	BenefitID                     string          `json:"benefitId"`
	BenefitType                   string          `json:"benefitType"`
	IsActive                      bool            `json:"isActive"`
	CreatedAt                     time.Time       `json:"createdAt"`
	UpdatedAt                     time.Time       `json:"updatedAt"`
}

// BillingDisplay renders the pre-tax billing total with its currency
func (s Supplier) BillingDisplay() string {
	return formatMoney(s.BillingPreTaxTotal, s.BillingCurrency)
}

// MonthBilling is the billing total of one calendar month, keyed "YYYY-MM"
type MonthBilling struct {
	YearMonth string          `json:"yearMonth"`
	Total     decimal.Decimal `json:"total"`
}

type Overview struct {
	TotalRecords     int             `json:"totalRecords"`
	TotalBilling     decimal.Decimal `json:"totalBilling"`
	TotalSubscribers int             `json:"totalSubscribers"`
	TotalCustomers   int             `json:"totalCustomers"`
	BillingByMonth   []MonthBilling  `json:"billingByMonth"`
}

const overviewCurrency = "USD"

// TotalBillingDisplay renders the total rounded to two decimal places
func (o Overview) TotalBillingDisplay() string {
	return formatMoney(o.TotalBilling, overviewCurrency)
}

// MaxMonthTotal is the largest monthly total, used to scale the month chart
func (o Overview) MaxMonthTotal() decimal.Decimal {
	top := decimal.Zero
	for _, m := range o.BillingByMonth {
		if m.Total.GreaterThan(top) {
			top = m.Total
		}
	}
	return top
}

// MonthShare returns m's total as a whole percentage of the largest month
func (o Overview) MonthShare(m MonthBilling) int {
	top := o.MaxMonthTotal()
	if top.IsZero() {
		return 0
	}
	return int(m.Total.Div(top).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}

func formatMoney(amount decimal.Decimal, currency string) string {
	s := amount.StringFixed(2)
	if currency == "" {
		return s
	}
	return s + " " + currency
}
