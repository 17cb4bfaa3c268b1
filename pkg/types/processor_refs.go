package types

// ProcessorRefs holds the correlation identifiers assigned by external processors.
type ProcessorRefs struct {
	Daraja   *DarajaRefs   `json:"daraja,omitempty"`
	Paystack *PaystackRefs `json:"paystack,omitempty"`
}

type DarajaRefs struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
	MerchantRequestID string `json:"merchantRequestId"`
	ReceiptNumber     string `json:"receiptNumber,omitempty"`
}

type PaystackRefs struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorizationUrl,omitempty"`
	AccessCode       string `json:"accessCode,omitempty"`
}
