package sales

import (
	"strings"

	"golang.org/x/text/cases"
)

// Field is a canonical sale row field resolved from export columns
type Field string

const (
	FieldDate       Field = "date"
	FieldSKU        Field = "sku"
	FieldName       Field = "name"
	FieldPrice      Field = "price"
	FieldQuantity   Field = "quantity"
	FieldCommission Field = "commission"
)

// RequiredFields are the fields every sale row must resolve
var RequiredFields = []Field{FieldDate, FieldSKU, FieldName, FieldPrice, FieldQuantity}

// Cells is the read side of a decoded row
type Cells interface {
	Headers() []string
	Get(header string) string
}

// ColumnProfile lists, per canonical field, the export column names to try in order
type ColumnProfile struct {
	Marketplace Marketplace
	Synonyms    map[Field][]string
}

// fold case-folds s. Casers are stateful and must not be shared across goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Resolve returns the header and value of the first synonym holding a non-blank
// value. Each synonym is tried as an exact header first, then case-insensitively.
func (p ColumnProfile) Resolve(f Field, cells Cells) (header, value string, ok bool) {
	headers := cells.Headers()
	for _, syn := range p.Synonyms[f] {
		if v := strings.TrimSpace(cells.Get(syn)); v != "" {
			return syn, v, true
		}
		want := fold(syn)
		for _, h := range headers {
			if h == syn || fold(strings.TrimSpace(h)) != want {
				continue
			}
			if v := strings.TrimSpace(cells.Get(h)); v != "" {
				return h, v, true
			}
		}
	}
	return "", "", false
}

// HeaderIndex returns the position of the first header matching one of the
// field synonyms, or -1.
func (p ColumnProfile) HeaderIndex(f Field, headers []string) int {
	for _, syn := range p.Synonyms[f] {
		want := fold(syn)
		for i, h := range headers {
			if h == syn || fold(strings.TrimSpace(h)) == want {
				return i
			}
		}
	}
	return -1
}

var columnProfiles = map[Marketplace]ColumnProfile{
	MarketplaceWildberries: {
		Marketplace: MarketplaceWildberries,
		Synonyms: map[Field][]string{
			FieldDate:       {"Дата продажи", "Date", "date"},
			FieldSKU:        {"Артикул WB", "SKU", "sku"},
			FieldName:       {"Наименование", "Product Name", "name"},
			FieldPrice:      {"Цена продажи", "Price", "price"},
			FieldQuantity:   {"Количество", "Quantity", "quantity"},
			FieldCommission: {"Комиссия WB", "Commission", "commission"},
		},
	},
	MarketplaceOzon: {
		Marketplace: MarketplaceOzon,
		Synonyms: map[Field][]string{
			FieldDate:       {"Дата", "Date", "date"},
			FieldSKU:        {"Артикул", "SKU", "sku"},
			FieldName:       {"Название товара", "Product Name", "name"},
			FieldPrice:      {"Цена за единицу", "Price", "price"},
			FieldQuantity:   {"Количество", "Quantity", "quantity"},
			FieldCommission: {"Комиссия за продажу", "Commission", "commission"},
		},
	},
}

// ColumnProfileFor returns a copy of the column profile of a marketplace
func ColumnProfileFor(m Marketplace) (ColumnProfile, bool) {
	p, ok := columnProfiles[m]
	if !ok {
		return ColumnProfile{}, false
	}
	synonyms := make(map[Field][]string, len(p.Synonyms))
	for f, names := range p.Synonyms {
		synonyms[f] = append([]string(nil), names...)
	}
	return ColumnProfile{Marketplace: p.Marketplace, Synonyms: synonyms}, true
}
