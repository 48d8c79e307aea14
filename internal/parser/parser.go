package parser

import (
	"errors"
	"fmt"
	"iter"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/smartphone-scraper/internal/models"
)

var (
	ErrParse     = errors.New("parse error")
	ErrStructure = errors.New("unexpected page structure")
)

// ParseError reports a field whose text did not match its expected pattern.
type ParseError struct {
	Field string
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s from %q", e.Field, e.Input)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// Parser turns fetched listing pages into product records.
type Parser interface {
	MaxPage(doc *goquery.Document) (int, error)
	Products(doc *goquery.Document) iter.Seq2[models.Product, error]
}

var _ Parser = (*MagpieParser)(nil)
