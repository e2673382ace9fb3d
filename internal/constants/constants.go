package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

// Default topics, one per event family.
const (
	DefaultCartTopic     = "commerce.cart.events"
	DefaultCustomerTopic = "commerce.customer.events"
	DefaultOrderTopic    = "commerce.order.events"
	DefaultWebhookTopic  = "commerce.webhook.events"
)

const (
	EventFamilyCart     = "cart"
	EventFamilyCustomer = "customer"
	EventFamilyOrder    = "order"
	EventFamilyWebhook  = "webhook"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	TokenGuardKeyPrefix = "token_refresh:"
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

// DefaultTokenTTLSeconds applies when the token endpoint omits expires_in.
const DefaultTokenTTLSeconds = 3600

const (
	DefaultCurrency    = "INR"
	PhoneCountryPrefix = "91"
)
