package barcode

import "testing"

func TestBundleBarcodeRoundTrip(t *testing.T) {
	code := BundleBarcode("ORD-2025-00001", "GEN", "M", 3)
	if code != "ORD-2025-00001-GEN-M-003" {
		t.Fatalf("unexpected bundle barcode %q", code)
	}

	parsed, err := Parse(code)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.Type != TypeBundle || parsed.OrderNumber != "ORD-2025-00001" || parsed.Size != "M" || parsed.BundleNumber != "003" {
		t.Fatalf("unexpected parse result: %+v", parsed)
	}
}

func TestOrderBarcodeSanitizesArticle(t *testing.T) {
	code := OrderBarcode("ORD-2025-00042", "polo shirt/2")
	if code != "ORD-2025-00042-POLOSHIRT2" {
		t.Fatalf("unexpected order barcode %q", code)
	}

	parsed, err := Parse(code)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.Type != TypeOrder || parsed.Article != "POLOSHIRT2" {
		t.Fatalf("unexpected parse result: %+v", parsed)
	}
}

func TestEmptyArticleFallsBackToGeneric(t *testing.T) {
	if got := OrderBarcode("ORD-2025-00001", "  --  "); got != "ORD-2025-00001-GEN" {
		t.Fatalf("got %q", got)
	}
}

func TestParseRejectsMalformedCodes(t *testing.T) {
	cases := []string{
		"",
		"ORD-2025",
		"ORD-25-00001-GEN",
		"XYZ-2025-00001-GEN",
		"ORD-2025-00001-GEN-M",
		"ORD-2025-00001-GEN-M-3",
		"ORD-2025-00001-GEN-M-00A",
		"ORD-2025-00001-GEN--003",
	}
	for _, c := range cases {
		if _, err := Parse(c); err != ErrInvalidBarcode {
			t.Errorf("Parse(%q): expected ErrInvalidBarcode, got %v", c, err)
		}
	}
}

func TestParseIsCaseInsensitive(t *testing.T) {
	parsed, err := Parse(" ord-2025-00007-gen-xl-012 ")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.Size != "XL" || parsed.BundleNumber != "012" {
		t.Fatalf("unexpected parse result: %+v", parsed)
	}
}
