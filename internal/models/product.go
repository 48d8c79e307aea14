package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Product is one normalised listing/colour combination.
type Product struct {
	Title            string
	Price            float64
	ImageURL         string
	CapacityMB       int
	Colour           string
	AvailabilityText string
	ShippingText     *string
	ShippingDate     *Date
}

// Date is a calendar date without time of day.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// IsAvailable reports whether the availability text mentions "in stock".
func (p Product) IsAvailable() bool {
	return strings.Contains(strings.ToLower(p.AvailabilityText), "in stock")
}

type productJSON struct {
	Title            string  `json:"title"`
	Price            float64 `json:"price"`
	ImageURL         string  `json:"imageUrl"`
	CapacityMB       int     `json:"capacityMB"`
	Colour           string  `json:"colour"`
	AvailabilityText string  `json:"availabilityText"`
	IsAvailable      bool    `json:"isAvailable"`
	ShippingText     *string `json:"shippingText"`
	ShippingDate     *Date   `json:"shippingDate"`
}

func (p Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(productJSON{
		Title:            p.Title,
		Price:            p.Price,
		ImageURL:         p.ImageURL,
		CapacityMB:       p.CapacityMB,
		Colour:           p.Colour,
		AvailabilityText: p.AvailabilityText,
		IsAvailable:      p.IsAvailable(),
		ShippingText:     p.ShippingText,
		ShippingDate:     p.ShippingDate,
	})
}

// UnmarshalJSON ignores isAvailable; it is always recomputed from the text.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw productJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Product{
		Title:            raw.Title,
		Price:            raw.Price,
		ImageURL:         raw.ImageURL,
		CapacityMB:       raw.CapacityMB,
		Colour:           raw.Colour,
		AvailabilityText: raw.AvailabilityText,
		ShippingText:     raw.ShippingText,
		ShippingDate:     raw.ShippingDate,
	}
	return nil
}

// productKey is the comparable form of a Product used for deduplication.
type productKey struct {
	title            string
	price            float64
	imageURL         string
	capacityMB       int
	colour           string
	availabilityText string
	hasShipping      bool
	shippingText     string
	shippingDate     string
}

func (p Product) key() productKey {
	k := productKey{
		title:            p.Title,
		price:            p.Price,
		imageURL:         p.ImageURL,
		capacityMB:       p.CapacityMB,
		colour:           p.Colour,
		availabilityText: p.AvailabilityText,
	}
	if p.ShippingText != nil {
		k.hasShipping = true
		k.shippingText = *p.ShippingText
	}
	if p.ShippingDate != nil {
		k.shippingDate = p.ShippingDate.String()
	}
	return k
}

// Equal reports whether two products carry identical field values.
func (p Product) Equal(other Product) bool {
	return p.key() == other.key()
}

// Dedupe collapses structurally equal products, keeping the first occurrence
// of each in input order. The input slice is not modified.
func Dedupe(products []Product) []Product {
	seen := make(map[productKey]struct{}, len(products))
	unique := make([]Product, 0, len(products))

	for _, p := range products {
		k := p.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, p)
	}

	return unique
}
