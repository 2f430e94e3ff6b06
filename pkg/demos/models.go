package demos

import (
	"encoding/json"
	"time"
)

// Amounts are json.Number so the decimal literals travel unchanged.

// SalesOrder is the simple purchase order shape.
type SalesOrder struct {
	ID                  string             `json:"id"`
	PurchaseOrderNumber string             `json:"ponumber"`
	OrderDate           time.Time          `json:"OrderDate"`
	ShippedDate         time.Time          `json:"ShippedDate"`
	AccountNumber       string             `json:"AccountNumber"`
	SubTotal            json.Number        `json:"SubTotal"`
	TaxAmt              json.Number        `json:"TaxAmt"`
	Freight             json.Number        `json:"Freight"`
	TotalDue            json.Number        `json:"TotalDue"`
	Items               []SalesOrderDetail `json:"Items"`
}

// SalesOrderDetail is a line of a SalesOrder.
type SalesOrderDetail struct {
	OrderQty  int         `json:"OrderQty"`
	ProductID int         `json:"ProductId"`
	UnitPrice json.Number `json:"UnitPrice"`
	LineTotal json.Number `json:"LineTotal"`
}

// SalesOrderV2 is a later schema of the same order: due dates, discounts
// and multi-currency lines. Both versions live in one collection.
type SalesOrderV2 struct {
	ID                  string               `json:"id"`
	PurchaseOrderNumber string               `json:"ponumber"`
	OrderDate           time.Time            `json:"OrderDate"`
	DueDate             time.Time            `json:"DueDate"`
	ShippedDate         time.Time            `json:"ShippedDate"`
	AccountNumber       string               `json:"AccountNumber"`
	SubTotal            json.Number          `json:"SubTotal"`
	TaxAmt              json.Number          `json:"TaxAmt"`
	Freight             json.Number          `json:"Freight"`
	TotalDue            json.Number          `json:"TotalDue"`
	DiscountAmt         json.Number          `json:"DiscountAmt"`
	Items               []SalesOrderDetailV2 `json:"Items"`
}

// SalesOrderDetailV2 is a line of a SalesOrderV2.
type SalesOrderDetailV2 struct {
	OrderQty       int         `json:"OrderQty"`
	ProductCode    string      `json:"ProductCode"`
	ProductName    string      `json:"ProductName"`
	CurrencySymbol string      `json:"CurrencySymbol"`
	CurrencyCode   string      `json:"CurrencyCode"`
	UnitPrice      json.Number `json:"UnitPrice"`
	LineTotal      json.Number `json:"LineTotal"`
}

// SalesOrderDocument is an order read back together with the system
// properties of the stored document.
type SalesOrderDocument struct {
	ID                  string             `json:"id"`
	SelfLink            string             `json:"_self,omitempty"`
	ETag                string             `json:"_etag,omitempty"`
	PurchaseOrderNumber string             `json:"PurchaseOrderNumber"`
	OrderDate           time.Time          `json:"OrderDate"`
	ShipDate            *time.Time         `json:"ShipDate,omitempty"`
	AccountNumber       string             `json:"AccountNumber"`
	SubTotal            json.Number        `json:"SubTotal"`
	TaxAmt              json.Number        `json:"TaxAmt"`
	Freight             json.Number        `json:"Freight"`
	TotalDue            json.Number        `json:"TotalDue"`
	Items               []SalesOrderDetail `json:"Item"`
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleOrders() []any {
	return []any{
		SalesOrder{
			ID:                  "POCO1",
			PurchaseOrderNumber: "PO18009186470",
			OrderDate:           date(2005, time.July, 1),
			AccountNumber:       "10-4020-000510",
			SubTotal:            "419.4589",
			TaxAmt:              "12.5838",
			Freight:             "472.3108",
			TotalDue:            "985.018",
			Items: []SalesOrderDetail{
				{OrderQty: 1, ProductID: 760, UnitPrice: "419.4589", LineTotal: "419.4589"},
			},
		},
		SalesOrderV2{
			ID:                  "POCO2",
			PurchaseOrderNumber: "PO15428132599",
			OrderDate:           date(2005, time.July, 1),
			DueDate:             date(2005, time.July, 13),
			ShippedDate:         date(2005, time.July, 8),
			AccountNumber:       "10-4020-000646",
			SubTotal:            "6107.0820",
			TaxAmt:              "586.1203",
			Freight:             "183.1626",
			DiscountAmt:         "1982.872",
			TotalDue:            "4893.3929",
			Items: []SalesOrderDetailV2{
				{OrderQty: 3, ProductCode: "A-123", ProductName: "Product 1", CurrencySymbol: "$", CurrencyCode: "USD", UnitPrice: "17.1", LineTotal: "5.7"},
				{OrderQty: 1, ProductCode: "B-432", ProductName: "Product 2", CurrencySymbol: "$", CurrencyCode: "NZD", UnitPrice: "2039.994", LineTotal: "2039.994"},
				{OrderQty: 1, ProductCode: "C-2312S", ProductName: "Product 3", CurrencySymbol: "R", CurrencyCode: "ZAR", UnitPrice: "2024.994", LineTotal: "2024.994"},
			},
		},
	}
}

func sampleOrderDocument() SalesOrderDocument {
	return SalesOrderDocument{
		ID:                  "DOC01",
		PurchaseOrderNumber: "PO180091783420",
		OrderDate:           date(2013, time.July, 17),
		AccountNumber:       "10-4020-000510",
		SubTotal:            "419.4589",
		TaxAmt:              "12.5838",
		Freight:             "472.3108",
		TotalDue:            "985.018",
		Items: []SalesOrderDetail{
			{OrderQty: 1, ProductID: 760, UnitPrice: "419.4589", LineTotal: "419.4589"},
		},
	}
}
