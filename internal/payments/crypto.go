package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const cryptoInvoiceTTL = 30 * time.Minute

// CryptoGateway simulates an on-chain invoice processor. Invoices live in
// memory; a confirmation carrying a transaction hash settles the invoice.
type CryptoGateway struct {
	network string
	now     func() time.Time
	calls   callLog

	mu       sync.Mutex
	invoices map[string]*types.CryptoResponse
}

func NewCryptoGateway(cfg config.CryptoConfig, logg *logger.Logger) *CryptoGateway {
	network := strings.ToLower(strings.TrimSpace(cfg.Network))
	if network == "" {
		network = "bitcoin"
	}
	return &CryptoGateway{
		network:  network,
		now:      func() time.Time { return time.Now().UTC() },
		calls:    callLog{gateway: "crypto", logger: logg},
		invoices: make(map[string]*types.CryptoResponse),
	}
}

func (g *CryptoGateway) Method() enums.PaymentMethod { return enums.PaymentMethodCrypto }

func (g *CryptoGateway) CreateIntent(ctx context.Context, req IntentRequest) (Result, error) {
	invoiceID := "crypto_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	invoice := &types.CryptoResponse{
		InvoiceID: invoiceID,
		Address:   depositAddress(g.network, req.OrderID, invoiceID),
		Network:   g.network,
		Amount:    req.Amount.StringFixed(2),
		Currency:  normalizeCurrency(req.Currency),
		Status:    "awaiting_payment",
		ExpiresAt: g.now().Add(cryptoInvoiceTTL),
	}

	g.mu.Lock()
	g.invoices[invoiceID] = invoice
	g.mu.Unlock()

	g.calls.log(ctx, "response", "create_invoice", map[string]any{"invoice_id": invoiceID, "network": g.network})
	return cryptoResult(*invoice, ""), nil
}

// Confirm settles an invoice when methodID carries the transaction hash.
// Without one the invoice stays pending.
func (g *CryptoGateway) Confirm(ctx context.Context, paymentID, methodID string) (Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	invoice, ok := g.invoices[paymentID]
	if !ok {
		return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, "crypto invoice not found")
	}
	txHash := strings.TrimSpace(methodID)
	switch {
	case invoice.Status == "confirmed":
	case g.now().After(invoice.ExpiresAt):
		invoice.Status = "expired"
	case txHash != "":
		invoice.Status = "confirmed"
	}
	g.calls.log(ctx, "response", "confirm_invoice", map[string]any{"invoice_id": paymentID, "status": invoice.Status})
	return cryptoResult(*invoice, txHash), nil
}

func (g *CryptoGateway) Refund(context.Context, RefundRequest) (RefundResult, error) {
	return RefundResult{}, pkgerrors.New(pkgerrors.CodeBusinessRule, "Crypto payments cannot be automatically refunded")
}

func (g *CryptoGateway) Status(_ context.Context, paymentID string) (Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	invoice, ok := g.invoices[paymentID]
	if !ok {
		return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, "crypto invoice not found")
	}
	return cryptoResult(*invoice, ""), nil
}

func cryptoResult(invoice types.CryptoResponse, txHash string) Result {
	status := enums.PaymentStatusPending
	switch invoice.Status {
	case "confirmed":
		status = enums.PaymentStatusCompleted
	case "expired":
		status = enums.PaymentStatusFailed
	}
	res := Result{
		Success:       status != enums.PaymentStatusFailed,
		PaymentID:     invoice.InvoiceID,
		TransactionID: txHash,
		Status:        status,
		Currency:      invoice.Currency,
		RedirectURL:   invoice.Network + ":" + invoice.Address,
		Gateway:       types.NewCryptoResponse(invoice),
	}
	res.Amount, _ = decimalFromString(invoice.Amount)
	if status == enums.PaymentStatusFailed {
		res.ErrorMessage = "crypto invoice expired"
	}
	return res
}

// depositAddress derives a stable address-shaped string for an invoice.
func depositAddress(network string, orderID uuid.UUID, invoiceID string) string {
	sum := sha256.Sum256([]byte(orderID.String() + ":" + invoiceID))
	digest := hex.EncodeToString(sum[:])
	switch network {
	case "ethereum":
		return "0x" + digest[:40]
	default:
		return "bc1q" + digest[:38]
	}
}

var _ Gateway = (*CryptoGateway)(nil)
