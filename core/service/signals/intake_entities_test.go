package signals

import (
	"reflect"
	"testing"
)

func TestEntityExtractor_Extract(t *testing.T) {
	ex := NewEntityExtractor(nil, nil)

	tests := []struct {
		name       string
		text       string
		products   []string
		quantities []string
		orders     []string
		phones     []string
	}{
		{
			name:       "quote request with product and quantity",
			text:       "URGENT - need quote for 5 drums of acetone ASAP",
			products:   []string{"acetone"},
			quantities: []string{"5 drums"},
		},
		{
			name:       "cas number counts as product",
			text:       "Do you stock CAS 67-64-1? Need 300 gallons.",
			products:   []string{"67-64-1"},
			quantities: []string{"300 gallons"},
		},
		{
			name:     "un number normalized",
			text:     "shipping class for un 1090 please",
			products: []string{"UN 1090"},
		},
		{
			name:       "composite quantity",
			text:       "Please quote 4 x 55 gal of isopropyl alcohol",
			products:   []string{"isopropyl"},
			quantities: []string{"55 gal", "4 x 55 gal"},
		},
		{
			name:   "order phrase and prefixed number",
			text:   "Status on order #48821 and invoice INV-10443?",
			orders: []string{"order #48821", "INV-10443"},
		},
		{
			name:   "phone number",
			text:   "Call me at (555) 201-4477 before 3pm",
			phones: []string{"(555) 201-4477"},
		},
		{
			name: "empty input",
			text: "",
		},
		{
			name:     "duplicates removed",
			text:     "acetone, Acetone, ACETONE",
			products: []string{"acetone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ex.Extract(tt.text)
			if !reflect.DeepEqual(got.Products, tt.products) {
				t.Errorf("products = %v, want %v", got.Products, tt.products)
			}
			if !reflect.DeepEqual(got.Quantities, tt.quantities) {
				t.Errorf("quantities = %v, want %v", got.Quantities, tt.quantities)
			}
			if !reflect.DeepEqual(got.OrderNumbers, tt.orders) {
				t.Errorf("order numbers = %v, want %v", got.OrderNumbers, tt.orders)
			}
			if !reflect.DeepEqual(got.PhoneNumbers, tt.phones) {
				t.Errorf("phone numbers = %v, want %v", got.PhoneNumbers, tt.phones)
			}
		})
	}
}

func TestEntityExtractor_Deterministic(t *testing.T) {
	ex := NewEntityExtractor(nil, nil)
	text := "Need 2 pallets of toluene, ref SO-99120, call 555-301-2200"

	first := ex.Extract(text)
	second := ex.Extract(text)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("extraction not deterministic:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func TestEntityExtractor_CustomVocabulary(t *testing.T) {
	ex := NewEntityExtractor([]string{"widget oil"}, []string{"ZZ"})

	got := ex.Extract("Quote for widget oil, ref ZZ-1234")
	if !reflect.DeepEqual(got.Products, []string{"widget oil"}) {
		t.Errorf("products = %v, want [widget oil]", got.Products)
	}
	if !reflect.DeepEqual(got.OrderNumbers, []string{"ZZ-1234"}) {
		t.Errorf("order numbers = %v, want [ZZ-1234]", got.OrderNumbers)
	}
}
