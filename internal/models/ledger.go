// Package models defines data structures for Folio
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/folio/internal/common"
)

// TransactionKind discriminates the ledger entry variants.
type TransactionKind string

const (
	KindBuy      TransactionKind = "buy"
	KindSell     TransactionKind = "sell"
	KindDividend TransactionKind = "dividend"
)

// ParseTransactionKind normalises a kind string. Unknown kinds are an error.
func ParseTransactionKind(s string) (TransactionKind, error) {
	switch k := TransactionKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindBuy, KindSell, KindDividend:
		return k, nil
	default:
		return "", fmt.Errorf("unknown transaction kind %q: %w", s, common.ErrMalformedTransaction)
	}
}

// BuyTrade is the payload of a Buy entry.
type BuyTrade struct {
	Quantity float64
	Price    float64
	Fees     float64
}

// SellTrade is the payload of a Sell entry.
type SellTrade struct {
	Quantity float64
	Price    float64
	Fees     float64
}

// Dividend is the payload of a Dividend entry. Amount is the cash received.
type Dividend struct {
	Amount float64
	Fees   float64
}

// Transaction is an immutable ledger entry owned by one asset.
// Exactly one of Buy, Sell or Dividend is set, matching Kind.
// Build values with NewBuy, NewSell, NewDividend or TransactionRecord.Decode.
type Transaction struct {
	ID      string
	AssetID string
	Seq     int64 // per-asset insertion order, breaks same-date ties
	Date    time.Time
	Kind    TransactionKind

	Buy      *BuyTrade
	Sell     *SellTrade
	Dividend *Dividend
}

func checkFees(fees float64) error {
	if fees < 0 {
		return fmt.Errorf("fees must be non-negative, got %v: %w", fees, common.ErrMalformedTransaction)
	}
	return nil
}

// NewBuy builds a Buy entry.
func NewBuy(assetID string, date time.Time, quantity, price, fees float64) (Transaction, error) {
	if err := checkFees(fees); err != nil {
		return Transaction{}, err
	}
	return Transaction{
		AssetID: assetID,
		Date:    date,
		Kind:    KindBuy,
		Buy:     &BuyTrade{Quantity: quantity, Price: price, Fees: fees},
	}, nil
}

// NewSell builds a Sell entry. Selling more than is held is allowed.
func NewSell(assetID string, date time.Time, quantity, price, fees float64) (Transaction, error) {
	if err := checkFees(fees); err != nil {
		return Transaction{}, err
	}
	return Transaction{
		AssetID: assetID,
		Date:    date,
		Kind:    KindSell,
		Sell:    &SellTrade{Quantity: quantity, Price: price, Fees: fees},
	}, nil
}

// NewDividend builds a Dividend entry for a cash amount received.
func NewDividend(assetID string, date time.Time, amount, fees float64) (Transaction, error) {
	if err := checkFees(fees); err != nil {
		return Transaction{}, err
	}
	return Transaction{
		AssetID:  assetID,
		Date:     date,
		Kind:     KindDividend,
		Dividend: &Dividend{Amount: amount, Fees: fees},
	}, nil
}

// Valid reports whether the payload matches Kind.
func (t Transaction) Valid() bool {
	switch t.Kind {
	case KindBuy:
		return t.Buy != nil && t.Sell == nil && t.Dividend == nil
	case KindSell:
		return t.Sell != nil && t.Buy == nil && t.Dividend == nil
	case KindDividend:
		return t.Dividend != nil && t.Buy == nil && t.Sell == nil
	}
	return false
}

// QuantityDelta is the signed effect on holdings: +qty for Buy, -qty for Sell, 0 for Dividend.
func (t Transaction) QuantityDelta() float64 {
	switch {
	case t.Buy != nil:
		return t.Buy.Quantity
	case t.Sell != nil:
		return -t.Sell.Quantity
	}
	return 0
}

// Record flattens the entry into its storage/wire shape.
func (t Transaction) Record() TransactionRecord {
	r := TransactionRecord{
		ID:      t.ID,
		AssetID: t.AssetID,
		Seq:     t.Seq,
		Kind:    string(t.Kind),
		Date:    t.Date,
	}
	switch {
	case t.Buy != nil:
		r.Quantity = floatPtr(t.Buy.Quantity)
		r.Price = floatPtr(t.Buy.Price)
		r.Fees = t.Buy.Fees
	case t.Sell != nil:
		r.Quantity = floatPtr(t.Sell.Quantity)
		r.Price = floatPtr(t.Sell.Price)
		r.Fees = t.Sell.Fees
	case t.Dividend != nil:
		r.Price = floatPtr(t.Dividend.Amount)
		r.Fees = t.Dividend.Fees
	}
	return r
}

// TransactionRecord is the flat storage and JSON shape of a Transaction.
// For dividends Price carries the cash amount and Quantity is absent.
type TransactionRecord struct {
	ID       string    `json:"id"`
	AssetID  string    `json:"assetId"`
	Seq      int64     `json:"seq"`
	Kind     string    `json:"kind"`
	Date     time.Time `json:"date"`
	Quantity *float64  `json:"quantity,omitempty"`
	Price    *float64  `json:"price,omitempty"`
	Fees     float64   `json:"fees"`
}

// Decode converts the record into a Transaction, rejecting entries that
// violate their variant's required fields with ErrMalformedTransaction.
func (r TransactionRecord) Decode() (Transaction, error) {
	kind, err := ParseTransactionKind(r.Kind)
	if err != nil {
		return Transaction{}, err
	}
	if r.Date.IsZero() {
		return Transaction{}, fmt.Errorf("transaction date is required: %w", common.ErrMalformedTransaction)
	}

	var tx Transaction
	switch kind {
	case KindBuy, KindSell:
		if r.Quantity == nil || r.Price == nil {
			return Transaction{}, fmt.Errorf("%s requires quantity and price: %w", kind, common.ErrMalformedTransaction)
		}
		if kind == KindBuy {
			tx, err = NewBuy(r.AssetID, r.Date, *r.Quantity, *r.Price, r.Fees)
		} else {
			tx, err = NewSell(r.AssetID, r.Date, *r.Quantity, *r.Price, r.Fees)
		}
	case KindDividend:
		if r.Price == nil {
			return Transaction{}, fmt.Errorf("dividend requires an amount: %w", common.ErrMalformedTransaction)
		}
		tx, err = NewDividend(r.AssetID, r.Date, *r.Price, r.Fees)
	}
	if err != nil {
		return Transaction{}, err
	}

	tx.ID = r.ID
	tx.Seq = r.Seq
	return tx, nil
}

func floatPtr(v float64) *float64 { return &v }

// AssetType classifies a holding.
type AssetType string

const (
	AssetTypeEquity     AssetType = "equity"
	AssetTypeCrypto     AssetType = "crypto"
	AssetTypeBond       AssetType = "bond"
	AssetTypeRealEstate AssetType = "real_estate"
	AssetTypeCommodity  AssetType = "commodity"
	AssetTypeCash       AssetType = "cash"
)

// ValidAssetTypes lists the accepted asset classes.
var ValidAssetTypes = []AssetType{
	AssetTypeEquity, AssetTypeCrypto, AssetTypeBond,
	AssetTypeRealEstate, AssetTypeCommodity, AssetTypeCash,
}

// IsValid reports whether t is a known asset class.
func (t AssetType) IsValid() bool {
	for _, v := range ValidAssetTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Asset is the static record of a holding. Derived values live in Position.
type Asset struct {
	ID           string    `json:"id"`
	PortfolioID  string    `json:"portfolioId"`
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	Type         AssetType `json:"type"`
	CurrentPrice *float64  `json:"currentPrice,omitempty"`
	Currency     string    `json:"currency,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsCash reports whether the asset is valued at face (price 1).
func (a Asset) IsCash() bool { return a.Type == AssetTypeCash }

// Portfolio is the static record of a named set of assets owned by one user.
type Portfolio struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
