package transform

import (
	"relay/internal/constants"
	pkgerrors "relay/pkg/errors"
)

// Cart builds the cart request from a raw {quote, items, customer} event.
// Items without a stable cart item identifier are skipped; when every item
// is skipped the whole transformation fails.
func (t *Transformer) Cart(raw map[string]interface{}) (*CartPayload, error) {
	cart := getMap(raw, "quote")
	items := getSlice(raw, "items")
	customer := getMap(raw, "customer")

	name := getString(customer, "name")
	if name == "" {
		name = joinName(getString(customer, "first_name"), getString(customer, "last_name"))
	}

	customerData := Customer{
		PlatformCustomerID:  getString(customer, "platform_customer_id"),
		FirstName:           getString(customer, "first_name"),
		LastName:            getString(customer, "last_name"),
		Name:                name,
		WhatsappPhoneNumber: NormalizePhone(getString(customer, "whatsapp_phone_number")),
		Email:               emailOrFalse(customer),
		CustomAttributes:    map[string]interface{}{},
	}

	cartID := getString(cart, "platform_cart_id")

	var cartItems []CartItem
	for _, entry := range items {
		item, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		itemID := getString(item, "platform_cart_item_id")
		if itemID == "" {
			t.logger.Warnw("Skipping cart item without platform_cart_item_id",
				"cart_id", orUnknown(cartID),
				"product_id", orUnknown(getString(item, "product_id")),
			)
			continue
		}

		quantity := getFloat(item, "quantity")
		if quantity == 0 {
			quantity = 1
		}

		cartItems = append(cartItems, CartItem{
			PlatformCartItemID: itemID,
			Price:              getFloat(item, "price"),
			ProductID:          getString(item, "product_id"),
			Quantity:           quantity,
		})
	}

	if len(cartItems) == 0 {
		return nil, pkgerrors.ErrTransform.WithMessage("no valid cart items found")
	}

	currency := getString(cart, "currency")
	if currency == "" {
		currency = constants.DefaultCurrency
	}

	var shopifyCustomerID *string
	if id := getString(customer, "platform_customer_id"); id != "" {
		shopifyCustomerID = &id
	}

	payload := &CartPayload{
		Customer:  customerData,
		CartItems: cartItems,
		Cart: Cart{
			Currency:          currency,
			PlatformCartID:    cartID,
			Name:              cartID,
			CreatedAt:         t.createdAtOrNow(cart, "created_at"),
			TotalTax:          getFloat(cart, "total_tax"),
			TotalPrice:        getFloat(cart, "total_price"),
			ShopifyCustomerID: shopifyCustomerID,
		},
	}

	return payload, nil
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

// emailOrFalse yields the email string when present, the JSON literal false
// when absent. The API schema expects false rather than null or "".
func emailOrFalse(m map[string]interface{}) interface{} {
	if email := getString(m, "email"); email != "" {
		return email
	}
	return false
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
