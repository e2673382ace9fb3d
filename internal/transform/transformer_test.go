package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/internal/logger"
	pkgerrors "relay/pkg/errors"
)

func newTestTransformer() *Transformer {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return NewWithClock(logger.NopLogger(), func() time.Time { return fixed })
}

func TestCartTransform(t *testing.T) {
	tr := newTestTransformer()

	raw := map[string]interface{}{
		"quote": map[string]interface{}{
			"platform_cart_id": "cart-42",
			"currency":         "USD",
			"created_at":       "2026-02-28 10:00:00",
			"total_tax":        1.5,
			"total_price":      100.0,
		},
		"items": []interface{}{
			map[string]interface{}{
				"platform_cart_item_id": "item-1",
				"price":                 50.0,
				"product_id":            "sku-a",
				"quantity":              2.0,
			},
			map[string]interface{}{
				"price":      25.0,
				"product_id": "sku-b",
			},
		},
		"customer": map[string]interface{}{
			"platform_customer_id":  "cust-7",
			"first_name":            "Asha",
			"last_name":             "Rao",
			"whatsapp_phone_number": "0987654321",
			"email":                 "asha@example.com",
		},
	}

	payload, err := tr.Cart(raw)
	require.NoError(t, err)

	// the item without a cart item id is skipped, not fatal
	require.Len(t, payload.CartItems, 1)
	assert.Equal(t, "item-1", payload.CartItems[0].PlatformCartItemID)
	assert.Equal(t, 2.0, payload.CartItems[0].Quantity)

	assert.Equal(t, "cart-42", payload.Cart.PlatformCartID)
	assert.Equal(t, "cart-42", payload.Cart.Name)
	assert.Equal(t, "USD", payload.Cart.Currency)
	require.NotNil(t, payload.Cart.ShopifyCustomerID)
	assert.Equal(t, "cust-7", *payload.Cart.ShopifyCustomerID)

	assert.Equal(t, "Asha Rao", payload.Customer.Name)
	assert.Equal(t, "91987654321", payload.Customer.WhatsappPhoneNumber)
	assert.Equal(t, "asha@example.com", payload.Customer.Email)
	assert.NotNil(t, payload.Customer.CustomAttributes)
}

func TestCartTransformAllItemsSkipped(t *testing.T) {
	tr := newTestTransformer()

	raw := map[string]interface{}{
		"quote": map[string]interface{}{"platform_cart_id": "cart-1"},
		"items": []interface{}{
			map[string]interface{}{"price": 10.0},
		},
		"customer": map[string]interface{}{},
	}

	_, err := tr.Cart(raw)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsTransform(err))
}

func TestCartTransformDefaults(t *testing.T) {
	tr := newTestTransformer()

	raw := map[string]interface{}{
		"quote": map[string]interface{}{"platform_cart_id": "cart-1"},
		"items": []interface{}{
			map[string]interface{}{"platform_cart_item_id": "i-1"},
		},
		"customer": map[string]interface{}{},
	}

	payload, err := tr.Cart(raw)
	require.NoError(t, err)

	assert.Equal(t, "INR", payload.Cart.Currency)
	assert.Equal(t, "2026-03-01 12:00:00", payload.Cart.CreatedAt)
	assert.Equal(t, 1.0, payload.CartItems[0].Quantity)
	assert.Equal(t, false, payload.Customer.Email)
	assert.Nil(t, payload.Cart.ShopifyCustomerID)
}

func TestCustomerValidation(t *testing.T) {
	tr := newTestTransformer()

	t.Run("missing email rejected", func(t *testing.T) {
		_, err := tr.Customer(map[string]interface{}{
			"platform_customer_id": "c-1",
		})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("phone required for updates", func(t *testing.T) {
		_, err := tr.Customer(map[string]interface{}{
			"platform_customer_id": "c-1",
			"email":                "c@example.com",
			"is_update":            true,
		})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("phone not required for creates", func(t *testing.T) {
		event, err := tr.Customer(map[string]interface{}{
			"platform_customer_id": "c-1",
			"email":                "c@example.com",
		})
		require.NoError(t, err)
		assert.False(t, event.IsUpdate)
	})
}

func TestCustomerPreparesPayload(t *testing.T) {
	tr := newTestTransformer()

	event, err := tr.Customer(map[string]interface{}{
		"platform_customer_id": "c-1",
		"email":                "c@example.com",
		"phone_number":         "0987654321",
		"is_update":            true,
		"custom_attributes":    []interface{}{},
	})
	require.NoError(t, err)

	assert.True(t, event.IsUpdate)
	assert.Equal(t, "c-1", event.CustomerID)
	_, hasFlag := event.Payload["is_update"]
	assert.False(t, hasFlag, "internal flag must not be delivered")
	assert.Equal(t, "91987654321", event.Payload["phone_number"])
	assert.Equal(t, map[string]interface{}{}, event.Payload["custom_attributes"])
}

func TestOrderTransform(t *testing.T) {
	tr := newTestTransformer()

	raw := map[string]interface{}{
		"order": map[string]interface{}{
			"increment_id":       "100000123",
			"customer_id":        7.0,
			"customer_firstname": "Ravi",
			"customer_lastname":  "Kumar",
			"customer_email":     "ravi@example.com",
			"status":             "Complete",
			"state":              "processing",
			"subtotal":           90.0,
			"tax_amount":         10.0,
			"grand_total":        100.0,
			"created_at":         "2026-02-28 09:00:00",
		},
		"items": []interface{}{
			map[string]interface{}{
				"item_id":     "li-1",
				"price":       45.0,
				"tax_amount":  5.0,
				"sku":         "SKU-1",
				"product_id":  "p-1",
				"name":        "Widget",
				"qty_ordered": 2.0,
			},
		},
		"payment": map[string]interface{}{
			"amount_paid":   100.0,
			"method":        "upi",
			"last_trans_id": "txn-9",
		},
		"billing_address": map[string]interface{}{
			"street":     "1 Main St",
			"city":       "Bengaluru",
			"region":     "KA",
			"postcode":   "560001",
			"country_id": "IN",
			"telephone":  "0987654321",
		},
	}

	event, err := tr.Order(raw)
	require.NoError(t, err)
	assert.False(t, event.IsUpdate)
	assert.Equal(t, "100000123", event.OrderID)

	payload, ok := event.Payload.(*OrderPayload)
	require.True(t, ok)

	assert.Equal(t, "7", payload.Customer.PlatformCustomerID)
	require.NotNil(t, payload.Customer.PhoneNumber)
	assert.Equal(t, "91987654321", *payload.Customer.PhoneNumber)

	require.Len(t, payload.OrderLineItems, 1)
	assert.True(t, payload.OrderLineItems[0].Taxable)
	assert.Equal(t, "li-1", payload.OrderLineItems[0].PlatformLineItemID)

	assert.Equal(t, "processing", payload.Order.Status)
	assert.Equal(t, "paid", payload.Order.PaymentStatus)
	billing, ok := payload.Order.BillingAddress.(Address)
	require.True(t, ok)
	assert.Equal(t, "Bengaluru", billing.City)
	// no shipping address on the event yields an empty object
	assert.Equal(t, map[string]interface{}{}, payload.Order.ShippingAddress)

	require.Len(t, payload.Transactions, 1)
	assert.Equal(t, "completed", payload.Transactions[0].Status)
	assert.Equal(t, 100.0, payload.Transactions[0].TransactionFinalAmount)
	assert.Equal(t, "upi", payload.Transactions[0].TransactionMode)
}

func TestOrderUpdateSendsOrderOnly(t *testing.T) {
	tr := newTestTransformer()

	raw := map[string]interface{}{
		"order": map[string]interface{}{
			"increment_id": "100000123",
			"state":        "canceled",
		},
		"items": []interface{}{
			map[string]interface{}{"item_id": "li-1"},
		},
		"is_update": true,
	}

	event, err := tr.Order(raw)
	require.NoError(t, err)
	assert.True(t, event.IsUpdate)

	order, ok := event.Payload.(*Order)
	require.True(t, ok)
	assert.Equal(t, "cancelled", order.Status)
}

func TestOrderTransformNoItems(t *testing.T) {
	tr := newTestTransformer()

	_, err := tr.Order(map[string]interface{}{
		"order": map[string]interface{}{"increment_id": "1"},
		"items": []interface{}{},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsTransform(err))
}

func TestMapOrderStatus(t *testing.T) {
	assert.Equal(t, "completed", MapOrderStatus("Complete"))
	assert.Equal(t, "cancelled", MapOrderStatus("canceled"))
	assert.Equal(t, "pending", MapOrderStatus("pending"))
	assert.Equal(t, "holded", MapOrderStatus("holded"))
	assert.Equal(t, "", MapOrderStatus(""))
}

func TestWebhookEnvelope(t *testing.T) {
	tr := newTestTransformer()

	t.Run("valid envelope", func(t *testing.T) {
		env, err := tr.Webhook(map[string]interface{}{
			"config_id":  "cfg-1",
			"event_type": "order.created",
			"payload":    map[string]interface{}{"a": 1.0},
			"timestamp":  "2026-03-01 12:00:00",
		})
		require.NoError(t, err)
		assert.Equal(t, "cfg-1", env.ConfigID)
		assert.Equal(t, "order.created", env.EventType)
	})

	t.Run("missing event_type rejected", func(t *testing.T) {
		_, err := tr.Webhook(map[string]interface{}{
			"config_id": "cfg-1",
			"payload":   map[string]interface{}{},
		})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("scalar payload rejected", func(t *testing.T) {
		_, err := tr.Webhook(map[string]interface{}{
			"config_id":  "cfg-1",
			"event_type": "x",
			"payload":    "not-an-object",
		})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
	})
}
