package browse

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatPrice renders a price in whole dollars with thousands separators.
func FormatPrice(price int) string {
	if price == 0 {
		return "Contact for price"
	}
	return printer.Sprintf("$%d", price)
}

// FormatBedBath renders a bedroom/bathroom summary line.
func FormatBedBath(bedrooms, bathrooms int) string {
	return fmt.Sprintf("%d bd | %d ba", bedrooms, bathrooms)
}

// FormatArea renders square footage with thousands separators.
func FormatArea(squareFeet int) string {
	if squareFeet == 0 {
		return "Area unknown"
	}
	return printer.Sprintf("%d sq ft", squareFeet)
}

// FormatAddress trims and collapses whitespace in a feed address.
func FormatAddress(address string) string {
	return strings.Join(strings.Fields(address), " ")
}
