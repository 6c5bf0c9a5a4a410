package paste

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	partyPattern = regexp.MustCompile(`(?i)party[ \t]*name[ \t]*:[ \t]*([^\n]*)`)
	gadiPattern  = regexp.MustCompile(`(?i)gadi[ \t]*no\.?[ \t]*:[ \t]*([^\n]*)`)
	itemPattern  = regexp.MustCompile(`(?i)lot[ \t]*no\.?[ \t]*:[ \t]*([^\s(]+)\s*\(\s*(\d+)\s*(?:bxs?|box(?:es)?)\b\.?([^)]*)\)`)
	totalPattern = regexp.MustCompile(`(?i)total[ \t]*:[ \t]*(\d+)`)
)

// OrderItem is one "Lot no : ... (n bxs ...)" block.
type OrderItem struct {
	LotNo              string `json:"lot_no"`
	Quantity           int64  `json:"quantity"`
	ProductDescription string `json:"product_description"`
}

// RejectedItem is an item block whose quantity could not be read.
type RejectedItem struct {
	LotNo    string `json:"lot_no"`
	Quantity string `json:"quantity"`
	Reason   string `json:"reason"`
}

// Order is the structured form of a pasted order message.
type Order struct {
	PartyName string         `json:"party_name"`
	GadiNo    string         `json:"gadi_no"`
	Items     []OrderItem    `json:"order_items"`
	Rejected  []RejectedItem `json:"rejected_items,omitempty"`
	Total     *int64         `json:"total,omitempty"`
}

// ItemsTotal sums the parsed item quantities.
func (o Order) ItemsTotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// TotalMatches reports whether the trailer total agrees with the items.
// A message without a trailer always matches.
func (o Order) TotalMatches() bool {
	return o.Total == nil || *o.Total == o.ItemsTotal()
}

// ParseOrder extracts party, vehicle, items and total from a pasted order.
//
//	Party Name : NS
//	Gadi No : MH 05 EA 9834
//	Lot no : 14016 (2 bxs SAFAWI A-1 QUALITY)
//	Total : 2 bxs
func ParseOrder(text string) Order {
	text = normalise(text)
	var out Order
	if m := partyPattern.FindStringSubmatch(text); m != nil {
		out.PartyName = strings.TrimSpace(m[1])
	}
	if m := gadiPattern.FindStringSubmatch(text); m != nil {
		out.GadiNo = strings.TrimSpace(m[1])
	}
	for _, m := range itemPattern.FindAllStringSubmatch(text, -1) {
		lot := strings.TrimSpace(m[1])
		qty, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			out.Rejected = append(out.Rejected, RejectedItem{LotNo: lot, Quantity: m[2], Reason: "quantity out of range"})
			continue
		}
		out.Items = append(out.Items, OrderItem{
			LotNo:              lot,
			Quantity:           qty,
			ProductDescription: collapse(m[3]),
		})
	}
	if m := totalPattern.FindStringSubmatch(text); m != nil {
		if total, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			out.Total = &total
		}
	}
	return out
}
