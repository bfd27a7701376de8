// Package contact builds the messaging deep link customers use to ask the
// seller about a product.
package contact

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/credihogar/catalog/internal/apperr"
)

// Endpoint is the WhatsApp link that opens the web or mobile client.
const Endpoint = "https://api.whatsapp.com/send"

// ErrNoNumber is returned when no seller number is configured.
var ErrNoNumber = apperr.Validation("No hay número de WhatsApp configurado. Agrega el número en los ajustes (ej: 573001234567).")

// Message is the greeting sent for product name.
func Message(name string) string {
	return "Hola, estoy interesado en el producto " + name
}

// Digits strips everything but ASCII digits from number.
func Digits(number string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			return r
		}
		return -1
	}, number)
}

// Link returns the deep link asking number about the product called name.
func Link(number, name string) (string, error) {
	phone := Digits(number)
	if phone == "" {
		return "", ErrNoNumber
	}
	return Endpoint + "?phone=" + escape(phone) + "&text=" + escape(Message(name)), nil
}

// escape percent-encodes s for a query value, with spaces as %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
