package transform

// Canonical request shapes for the external commerce API. Field names and
// defaults follow the API schema exactly; attribute maps are always emitted
// as objects, never null.

type Customer struct {
	PlatformCustomerID  string                 `json:"platform_customer_id"`
	PhoneNumber         *string                `json:"phone_number,omitempty"`
	FirstName           string                 `json:"first_name"`
	LastName            string                 `json:"last_name"`
	Name                string                 `json:"name"`
	WhatsappPhoneNumber string                 `json:"whatsapp_phone_number"`
	Email               interface{}            `json:"email"`
	CustomAttributes    map[string]interface{} `json:"custom_attributes"`
}

type CartItem struct {
	PlatformCartItemID string  `json:"platform_cart_item_id"`
	Price              float64 `json:"price"`
	ProductID          string  `json:"product_id"`
	Quantity           float64 `json:"quantity"`
}

type Cart struct {
	Currency          string  `json:"currency"`
	PlatformCartID    string  `json:"platform_cart_id"`
	Name              string  `json:"name"`
	CreatedAt         string  `json:"created_at"`
	TotalTax          float64 `json:"total_tax"`
	TotalPrice        float64 `json:"total_price"`
	ShopifyCustomerID *string `json:"shopify_customer_id"`
}

type CartPayload struct {
	Customer  Customer   `json:"customer"`
	CartItems []CartItem `json:"cart_item"`
	Cart      Cart       `json:"cart"`
}

type Address struct {
	Address1 string `json:"address1"`
	City     string `json:"city"`
	Province string `json:"province"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

type OrderLineItem struct {
	Status             string                 `json:"status"`
	PlatformLineItemID string                 `json:"platform_line_item_id"`
	Price              float64                `json:"price"`
	Taxable            bool                   `json:"taxable"`
	DiscountAmount     float64                `json:"discount_amount"`
	SKU                string                 `json:"sku"`
	ProductID          string                 `json:"product_id"`
	GiftCard           bool                   `json:"gift_card"`
	CustomAttributes   map[string]interface{} `json:"custom_attributes"`
	ProductName        string                 `json:"product_name"`
	Quantity           float64                `json:"quantity"`
}

type OrderCustomAttributes struct {
	CashbackAmount            float64 `json:"cashback_amount"`
	CashbackRedeemptionOrder  bool    `json:"cashback_redeemption_order"`
	POSReference              string  `json:"pos_reference"`
	CardOrder                 bool    `json:"card_order"`
	CashbackRedeemptionAmount float64 `json:"cashback_redeemption_amount"`
	CardNo                    bool    `json:"card_no"`
}

type Order struct {
	Status                string                `json:"status"`
	CurrentSubtotalPrice  float64               `json:"current_subtotal_price"`
	BillingAddress        interface{}           `json:"billing_address"`
	PaymentStatus         string                `json:"payment_status"`
	Currency              string                `json:"currency"`
	PlatformOrderID       string                `json:"platform_order_id"`
	Name                  string                `json:"name"`
	CurrentTotalTax       float64               `json:"current_total_tax"`
	CreatedAt             string                `json:"created_at"`
	CustomAttributes      OrderCustomAttributes `json:"custom_attributes"`
	Note                  interface{}           `json:"note"`
	FulfillmentStatus     string                `json:"fulfillment_status"`
	CurrentTotalDiscounts float64               `json:"current_total_discounts"`
	CurrentTotalPrice     float64               `json:"current_total_price"`
	ShippingAddress       interface{}           `json:"shipping_address"`
}

type Transaction struct {
	Status                    string                 `json:"status"`
	TransactionFinalAmount    float64                `json:"transaction_final_amount"`
	CustomAttributes          map[string]interface{} `json:"custom_attributes"`
	TransactionMode           string                 `json:"transaction_mode"`
	CreatedAt                 string                 `json:"created_at"`
	PlatformTransactionID     string                 `json:"platform_transaction_id"`
	TransactionOriginalAmount float64                `json:"transaction_original_amount"`
	FinancialStatus           string                 `json:"financial_status"`
	TransactionType           string                 `json:"transaction_type"`
}

type OrderPayload struct {
	Customer       Customer        `json:"customer"`
	OrderLineItems []OrderLineItem `json:"order_line_item"`
	Order          Order           `json:"order"`
	Transactions   []Transaction   `json:"transactions"`
}
