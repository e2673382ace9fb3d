package transform

import (
	"strings"

	"relay/internal/constants"
	pkgerrors "relay/pkg/errors"
)

var orderStatusMap = map[string]string{
	"pending":    "pending",
	"processing": "processing",
	"complete":   "completed",
	"canceled":   "cancelled",
}

// OrderEvent is a transformed order. Payload is an *OrderPayload for new
// orders and a bare *Order for updates, which PATCH only the order fields.
type OrderEvent struct {
	Payload  interface{}
	OrderID  string
	IsUpdate bool
}

// Order builds the order request from a raw
// {order, items, payment, billing_address, shipping_address} event.
func (t *Transformer) Order(raw map[string]interface{}) (*OrderEvent, error) {
	order := getMap(raw, "order")
	items := getSlice(raw, "items")
	payment := getMap(raw, "payment")
	billingAddress := getMap(raw, "billing_address")
	shippingAddress := getMap(raw, "shipping_address")
	isUpdate := getBool(raw, "is_update")

	orderID := getString(order, "increment_id")

	var lineItems []OrderLineItem
	for _, entry := range items {
		item, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		itemID := getString(item, "item_id")
		if itemID == "" {
			t.logger.Warnw("Skipping order item without item_id",
				"order_id", orUnknown(orderID),
				"product_id", orUnknown(getString(item, "product_id")),
			)
			continue
		}

		quantity := getFloat(item, "qty_ordered")
		if quantity == 0 {
			quantity = 1
		}

		lineItems = append(lineItems, OrderLineItem{
			Status:             "",
			PlatformLineItemID: itemID,
			Price:              getFloat(item, "price"),
			Taxable:            getFloat(item, "tax_amount") > 0,
			DiscountAmount:     getFloat(item, "discount_amount"),
			SKU:                getString(item, "sku"),
			ProductID:          getString(item, "product_id"),
			GiftCard:           false,
			CustomAttributes:   map[string]interface{}{},
			ProductName:        getString(item, "name"),
			Quantity:           quantity,
		})
	}

	if len(lineItems) == 0 {
		return nil, pkgerrors.ErrTransform.WithMessage("no valid order items found")
	}

	paymentState := MapOrderStatus(getString(order, "status"))
	orderState := MapOrderStatus(getString(order, "state"))

	currency := getString(order, "currency_code")
	if currency == "" {
		currency = constants.DefaultCurrency
	}

	createdAt := t.createdAtOrNow(order, "created_at")

	orderData := Order{
		Status:               orderState,
		CurrentSubtotalPrice: getFloat(order, "subtotal"),
		BillingAddress:       transformAddress(billingAddress),
		PaymentStatus:        mapPaymentStatus(payment),
		Currency:             currency,
		PlatformOrderID:      orderID,
		Name:                 orderID,
		CurrentTotalTax:      getFloat(order, "tax_amount"),
		CreatedAt:            createdAt,
		CustomAttributes: OrderCustomAttributes{
			POSReference: orderID,
		},
		Note:                  false,
		FulfillmentStatus:     orderState,
		CurrentTotalDiscounts: getFloat(order, "discount_amount"),
		CurrentTotalPrice:     getFloat(order, "grand_total"),
		ShippingAddress:       transformAddress(shippingAddress),
	}

	if isUpdate {
		return &OrderEvent{Payload: &orderData, OrderID: orderID, IsUpdate: true}, nil
	}

	phone := NormalizePhone(getString(billingAddress, "telephone"))
	customer := Customer{
		PlatformCustomerID:  getString(order, "customer_id"),
		PhoneNumber:         &phone,
		FirstName:           getString(order, "customer_firstname"),
		LastName:            getString(order, "customer_lastname"),
		Name:                joinName(getString(order, "customer_firstname"), getString(order, "customer_lastname")),
		WhatsappPhoneNumber: phone,
		Email:               emailOrFalse(map[string]interface{}{"email": order["customer_email"]}),
		CustomAttributes:    map[string]interface{}{},
	}

	finalAmount := getFloat(payment, "amount_paid")
	if finalAmount == 0 {
		finalAmount = getFloat(order, "grand_total")
	}
	originalAmount := getFloat(payment, "amount_authorized")
	if originalAmount == 0 {
		originalAmount = getFloat(order, "grand_total")
	}
	transactionID := getString(payment, "last_trans_id")
	if transactionID == "" {
		transactionID = orderID
	}
	transactionMode := getString(payment, "method")
	if transactionMode == "" {
		transactionMode = "Unknown"
	}

	transactions := []Transaction{{
		Status:                    paymentState,
		TransactionFinalAmount:    finalAmount,
		CustomAttributes:          map[string]interface{}{},
		TransactionMode:           transactionMode,
		CreatedAt:                 createdAt,
		PlatformTransactionID:     transactionID,
		TransactionOriginalAmount: originalAmount,
		FinancialStatus:           "",
		TransactionType:           "",
	}}

	payload := &OrderPayload{
		Customer:       customer,
		OrderLineItems: lineItems,
		Order:          orderData,
		Transactions:   transactions,
	}

	return &OrderEvent{Payload: payload, OrderID: orderID, IsUpdate: false}, nil
}

// MapOrderStatus translates platform order states into the external API's
// vocabulary. Unmapped values pass through unchanged.
func MapOrderStatus(status string) string {
	if mapped, ok := orderStatusMap[strings.ToLower(status)]; ok {
		return mapped
	}
	return status
}

func mapPaymentStatus(payment map[string]interface{}) string {
	if len(payment) == 0 {
		return ""
	}
	if getFloat(payment, "amount_paid") > 0 {
		return "paid"
	}
	return ""
}

// transformAddress maps a platform address record to the external shape,
// or an empty object when no address is present.
func transformAddress(address map[string]interface{}) interface{} {
	if len(address) == 0 {
		return map[string]interface{}{}
	}
	return Address{
		Address1: getString(address, "street"),
		City:     getString(address, "city"),
		Province: getString(address, "region"),
		Zip:      getString(address, "postcode"),
		Country:  getString(address, "country_id"),
		Phone:    getString(address, "telephone"),
	}
}
