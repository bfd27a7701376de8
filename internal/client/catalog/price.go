package catalog

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// AbbreviationThreshold is the amount under which a stored price is read as
// thousands of pesos. Display only; stored prices are never rescaled.
const AbbreviationThreshold = 1000

var printer = message.NewPrinter(language.MustParse("es-CO"))

// DisplayAmount applies the thousands heuristic to a stored price.
func DisplayAmount(price float64) float64 {
	if !math.IsNaN(price) && !math.IsInf(price, 0) && price < AbbreviationThreshold {
		return price * 1000
	}
	return price
}

// FormatPrice renders a stored price as Colombian pesos without decimals.
func FormatPrice(price float64) string {
	return printer.Sprintf("$ %v", number.Decimal(math.Round(DisplayAmount(price)), number.MaxFractionDigits(0)))
}
