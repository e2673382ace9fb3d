package crmapi

import "strings"

// Endpoints derives the external commerce API URLs from a single base URL.
type Endpoints struct {
	base string
}

func NewEndpoints(baseURL string) Endpoints {
	return Endpoints{base: strings.TrimRight(baseURL, "/")}
}

func (e Endpoints) TokenURL() string {
	return e.base + "/generate-access-token"
}

func (e Endpoints) CustomerURL() string {
	return e.base + "/customer"
}

func (e Endpoints) OrderURL() string {
	return e.base + "/order"
}

func (e Endpoints) CartURL() string {
	return e.base + "/cart"
}
