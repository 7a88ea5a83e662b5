// Package barcode encodes and decodes the string identifiers printed on
// order tickets and bundle tags. Rendering the codes as images is left to
// the label printer.
package barcode

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	TypeOrder  = "order"
	TypeBundle = "bundle"
)

var (
	ErrInvalidBarcode = errors.New("invalid barcode")

	nonAlnum      = regexp.MustCompile(`[^A-Z0-9]`)
	orderNumberRe = regexp.MustCompile(`^ORD-\d{4}-\d{5}$`)
)

// Parsed is the decoded content of a barcode
type Parsed struct {
	Type         string `json:"type"`
	OrderNumber  string `json:"order_number"`
	Article      string `json:"article"`
	Size         string `json:"size,omitempty"`
	BundleNumber string `json:"bundle_number,omitempty"`
}

// Sanitize upper-cases s and strips everything but A-Z and 0-9
func Sanitize(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToUpper(s), "")
}

// OrderBarcode builds "<orderNumber>-<ARTICLE>"
func OrderBarcode(orderNumber, article string) string {
	return strings.Join([]string{orderNumber, articleOrDefault(article)}, "-")
}

// BundleBarcode builds "<orderNumber>-<ARTICLE>-<SIZE>-<000>"
func BundleBarcode(orderNumber, article, size string, bundle int) string {
	return strings.Join([]string{
		orderNumber,
		articleOrDefault(article),
		Sanitize(size),
		fmt.Sprintf("%03d", bundle),
	}, "-")
}

// Parse decodes an order or bundle barcode
func Parse(code string) (Parsed, error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(code)), "-")
	if len(parts) != 4 && len(parts) != 6 {
		return Parsed{}, ErrInvalidBarcode
	}

	orderNumber := strings.Join(parts[:3], "-")
	if !orderNumberRe.MatchString(orderNumber) || parts[3] == "" {
		return Parsed{}, ErrInvalidBarcode
	}

	if len(parts) == 4 {
		return Parsed{Type: TypeOrder, OrderNumber: orderNumber, Article: parts[3]}, nil
	}

	if parts[4] == "" || len(parts[5]) != 3 {
		return Parsed{}, ErrInvalidBarcode
	}
	if _, err := strconv.Atoi(parts[5]); err != nil {
		return Parsed{}, ErrInvalidBarcode
	}

	return Parsed{
		Type:         TypeBundle,
		OrderNumber:  orderNumber,
		Article:      parts[3],
		Size:         parts[4],
		BundleNumber: parts[5],
	}, nil
}

func articleOrDefault(article string) string {
	if a := Sanitize(article); a != "" {
		return a
	}
	return "GEN"
}
