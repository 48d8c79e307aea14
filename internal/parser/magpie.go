package parser

import (
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/smartphone-scraper/internal/models"
)

// Selectors describes where the listing markup keeps each piece of data.
type Selectors struct {
	Product    string
	Summary    string
	Title      string
	Capacity   string
	Image      string
	Swatch     string
	ColourAttr string
}

func DefaultSelectors() Selectors {
	return Selectors{
		Product:    "#products .product > div",
		Summary:    "#products > p",
		Title:      "h3 .product-name",
		Capacity:   "h3 .product-capacity",
		Image:      "img",
		Swatch:     "span",
		ColourAttr: "data-colour",
	}
}

// Informational blocks are the direct div children of a product fragment,
// addressed by role rather than by position.
const (
	blockSwatches = iota
	blockPrice
	blockAvailability
	blockShipping

	minBlocks          = blockAvailability + 1
	blocksWithShipping = blockShipping + 1
)

type MagpieParser struct {
	sel Selectors
}

func NewMagpieParser() *MagpieParser {
	return NewMagpieParserWithSelectors(DefaultSelectors())
}

func NewMagpieParserWithSelectors(sel Selectors) *MagpieParser {
	return &MagpieParser{sel: sel}
}

// MaxPage reads the page count from the trailing token of the results summary.
func (p *MagpieParser) MaxPage(doc *goquery.Document) (int, error) {
	summary := doc.Find(p.sel.Summary).First()
	if summary.Length() == 0 {
		return 0, fmt.Errorf("%w: results summary %q not found", ErrStructure, p.sel.Summary)
	}

	tokens := strings.Fields(summary.Text())
	if len(tokens) == 0 {
		return 0, fmt.Errorf("%w: results summary is empty", ErrStructure)
	}

	last := tokens[len(tokens)-1]
	maxPage, err := strconv.Atoi(last)
	if err != nil || maxPage < 1 {
		return 0, &ParseError{Field: "page count", Input: normalizeText(summary.Text())}
	}
	return maxPage, nil
}

// Products walks every product fragment of a page in document order.
func (p *MagpieParser) Products(doc *goquery.Document) iter.Seq2[models.Product, error] {
	return func(yield func(models.Product, error) bool) {
		fragments := doc.Find(p.sel.Product)
		for i := range fragments.Length() {
			for product, err := range p.ExtractProduct(fragments.Eq(i), doc.Url) {
				if err != nil {
					yield(models.Product{}, fmt.Errorf("failed to extract product %d: %w", i+1, err))
					return
				}
				if !yield(product, nil) {
					return
				}
			}
		}
	}
}

// ExtractProduct yields one record per colour swatch of a product fragment.
// Relative image references are resolved against base when it is set.
func (p *MagpieParser) ExtractProduct(fragment *goquery.Selection, base *url.URL) iter.Seq2[models.Product, error] {
	return func(yield func(models.Product, error) bool) {
		blocks := fragment.ChildrenFiltered("div")

		colours, err := p.colours(blocks.Eq(blockSwatches))
		if err != nil {
			yield(models.Product{}, err)
			return
		}
		if len(colours) == 0 {
			return
		}

		shared, err := p.sharedFields(fragment, blocks, base)
		if err != nil {
			yield(models.Product{}, err)
			return
		}

		for _, colour := range colours {
			if !yield(withColour(shared, colour), nil) {
				return
			}
		}
	}
}

func (p *MagpieParser) colours(swatches *goquery.Selection) ([]string, error) {
	var colours []string
	var err error

	swatches.Find(p.sel.Swatch).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw, ok := s.Attr(p.sel.ColourAttr)
		colour := normalizeText(raw)
		if !ok || colour == "" {
			err = &ParseError{Field: "colour", Input: raw}
			return false
		}
		colours = append(colours, colour)
		return true
	})

	return colours, err
}

func (p *MagpieParser) sharedFields(fragment, blocks *goquery.Selection, base *url.URL) (models.Product, error) {
	var product models.Product

	if n := blocks.Length(); n < minBlocks {
		return product, fmt.Errorf("%w: expected at least %d informational blocks, found %d",
			ErrStructure, minBlocks, n)
	}

	title, err := requiredText(fragment, p.sel.Title)
	if err != nil {
		return product, err
	}
	product.Title = title

	capacityText, err := requiredText(fragment, p.sel.Capacity)
	if err != nil {
		return product, err
	}
	if product.CapacityMB, err = ParseCapacityMB(capacityText); err != nil {
		return product, err
	}

	if product.ImageURL, err = p.imageURL(fragment, base); err != nil {
		return product, err
	}

	if product.Price, err = ParsePrice(normalizeText(blocks.Eq(blockPrice).Text())); err != nil {
		return product, err
	}

	availability := normalizeText(blocks.Eq(blockAvailability).Text())
	if product.AvailabilityText, err = ParseAvailability(availability); err != nil {
		return product, err
	}

	// Only the four-block layout carries shipping text; any other count has none.
	if blocks.Length() == blocksWithShipping {
		shipping := normalizeText(blocks.Eq(blockShipping).Text())
		product.ShippingText = &shipping
		if date, ok := ParseShippingDate(shipping); ok {
			product.ShippingDate = &date
		}
	}

	return product, nil
}

func (p *MagpieParser) imageURL(fragment *goquery.Selection, base *url.URL) (string, error) {
	img := fragment.Find(p.sel.Image).First()
	src, ok := img.Attr("src")
	if !ok {
		return "", fmt.Errorf("%w: product image %q not found", ErrStructure, p.sel.Image)
	}

	ref, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return "", &ParseError{Field: "image url", Input: src}
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	return ref.String(), nil
}

func requiredText(s *goquery.Selection, selector string) (string, error) {
	match := s.Find(selector).First()
	if match.Length() == 0 {
		return "", fmt.Errorf("%w: %q not found", ErrStructure, selector)
	}
	return normalizeText(match.Text()), nil
}

// withColour copies the shared fields into an independent record.
func withColour(shared models.Product, colour string) models.Product {
	product := shared
	product.Colour = colour

	if shared.ShippingText != nil {
		text := *shared.ShippingText
		product.ShippingText = &text
	}
	if shared.ShippingDate != nil {
		date := *shared.ShippingDate
		product.ShippingDate = &date
	}

	return product
}
