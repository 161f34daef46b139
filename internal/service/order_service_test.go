package service

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/helden/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var netBanking = domain.NetBanking{GatewayOrderID: "order_rzp_1", GatewayPaymentID: "pay_1", Signature: "good-sig"}

// placeOrder confirms the fixture cart (two units, 460 total) with p.
func placeOrder(t *testing.T, f *fixture, p domain.Payment) *domain.Order {
	t.Helper()
	ctx := context.Background()
	draft, err := f.checkout.CreateDraft(ctx, testUser)
	require.NoError(t, err)
	req := codRequest(draft.ID)
	req.Payment = p
	order, err := f.checkout.Confirm(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 8, f.available(t, testProduct, "M"))
	return order
}

func TestCancel_NetBankingRefundsAndRestocks(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	order := placeOrder(t, f, netBanking)

	cancelled, err := f.order.Cancel(context.Background(), CancelRequest{UserID: testUser, OrderID: order.ID, Reason: "changed my mind"})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, "changed my mind", cancelled.Reason)
	assert.Equal(t, domain.OrderStatusCancelled, f.orders.stored(order.ID).Status)
	assert.Equal(t, 10, f.available(t, testProduct, "M"))

	page, err := f.wallet.Get(context.Background(), testUser, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 460.0, page.Balance)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, "cancel:"+order.ID, page.Transactions[0].Reference)
	assert.Equal(t, "Refund for cancelled order "+order.ID, page.Transactions[0].Description)
	assert.Equal(t, domain.TransactionCredit, page.Transactions[0].Type)

	assert.Equal(t, []string{domain.EventOrderConfirmed, domain.EventOrderCancelled}, f.outbox.types())
}

func TestCancel_CashOnDeliveryOnlyRestocks(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	order := placeOrder(t, f, domain.CashOnDelivery{})

	_, err := f.order.Cancel(context.Background(), CancelRequest{UserID: testUser, OrderID: order.ID})
	require.NoError(t, err)

	assert.Equal(t, 10, f.available(t, testProduct, "M"))
	balance, txs := f.wallets.balance(testUser)
	assert.Equal(t, 0.0, balance)
	assert.Equal(t, 0, txs)
}

func TestCancel_Twice(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	order := placeOrder(t, f, netBanking)
	ctx := context.Background()
	req := CancelRequest{UserID: testUser, OrderID: order.ID}

	_, err := f.order.Cancel(ctx, req)
	require.NoError(t, err)
	_, err = f.order.Cancel(ctx, req)

	var te *IllegalTransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.OrderStatusCancelled, te.From)
	assert.Equal(t, KindStateConflict, KindOf(err))

	assert.Equal(t, 10, f.available(t, testProduct, "M"))
	balance, txs := f.wallets.balance(testUser)
	assert.Equal(t, 460.0, balance)
	assert.Equal(t, 1, txs)
}

func TestCancel_IdempotentReplay(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	order := placeOrder(t, f, netBanking)
	ctx := context.Background()
	req := CancelRequest{UserID: testUser, OrderID: order.ID, IdempotencyKey: "k"}

	_, err := f.order.Cancel(ctx, req)
	require.NoError(t, err)
	again, err := f.order.Cancel(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusCancelled, again.Status)
	balance, _ := f.wallets.balance(testUser)
	assert.Equal(t, 460.0, balance)
}

func TestCancel_NotOwner(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	order := placeOrder(t, f, domain.CashOnDelivery{})

	_, err := f.order.Cancel(context.Background(), CancelRequest{UserID: "intruder", OrderID: order.ID})
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, 8, f.available(t, testProduct, "M"))
}

func TestCancel_DraftIsNotFound(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	draft, err := f.checkout.CreateDraft(context.Background(), testUser)
	require.NoError(t, err)

	_, err = f.order.Cancel(context.Background(), CancelRequest{UserID: testUser, OrderID: draft.ID})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancel_RefundFailureRevertsEverything(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	order := placeOrder(t, f, netBanking)
	f.wallets.err = errors.New("wallet store down")

	_, err := f.order.Cancel(context.Background(), CancelRequest{UserID: testUser, OrderID: order.ID})
	require.Error(t, err)

	assert.Equal(t, domain.OrderStatusShipping, f.orders.stored(order.ID).Status)
	assert.Equal(t, 8, f.available(t, testProduct, "M"))

	// the reverted order can still be cancelled once the wallet recovers
	f.wallets.err = nil
	_, err = f.order.Cancel(context.Background(), CancelRequest{UserID: testUser, OrderID: order.ID})
	require.NoError(t, err)
	balance, _ := f.wallets.balance(testUser)
	assert.Equal(t, 460.0, balance)
}

func TestReturn_AcceptRefundsAndRestocks(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	order := placeOrder(t, f, netBanking)
	ctx := context.Background()

	requested, err := f.order.RequestReturn(ctx, testUser, order.ID, "wrong size")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRequested, requested.Status)
	assert.Equal(t, "wrong size", requested.Reason)
	assert.Equal(t, 8, f.available(t, testProduct, "M"))
	_, txs := f.wallets.balance(testUser)
	assert.Equal(t, 0, txs)

	returned, err := f.order.Accept(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReturned, returned.Status)
	assert.Equal(t, 10, f.available(t, testProduct, "M"))

	page, err := f.wallet.Get(ctx, testUser, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 460.0, page.Balance)
	assert.Equal(t, "return:"+order.ID, page.Transactions[0].Reference)
}

func TestReturn_AcceptRefundsCashOnDelivery(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	order := placeOrder(t, f, domain.CashOnDelivery{})
	ctx := context.Background()

	_, err := f.order.RequestReturn(ctx, testUser, order.ID, "damaged")
	var te *IllegalTransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.OrderStatusPending, te.From)

	_, err = f.order.UpdateStatus(ctx, order.ID, domain.OrderStatusShipping, "")
	require.NoError(t, err)
	_, err = f.order.RequestReturn(ctx, testUser, order.ID, "damaged")
	require.NoError(t, err)
	_, err = f.order.Accept(ctx, order.ID)
	require.NoError(t, err)

	balance, _ := f.wallets.balance(testUser)
	assert.Equal(t, 460.0, balance)
}

func TestReturn_Reject(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	order := placeOrder(t, f, netBanking)
	ctx := context.Background()

	_, err := f.order.Reject(ctx, order.ID)
	var te *IllegalTransitionError
	require.ErrorAs(t, err, &te)

	_, err = f.order.RequestReturn(ctx, testUser, order.ID, "late")
	require.NoError(t, err)
	rejected, err := f.order.Reject(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusRejected, rejected.Status)
	assert.Equal(t, 8, f.available(t, testProduct, "M"))
	_, txs := f.wallets.balance(testUser)
	assert.Equal(t, 0, txs)

	_, err = f.order.Accept(ctx, order.ID)
	assert.Error(t, err)
}

func TestUpdateStatus(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	ctx := context.Background()

	t.Run("unknown status", func(t *testing.T) {
		order := placeOrder(t, f, domain.CashOnDelivery{})
		_, err := f.order.UpdateStatus(ctx, order.ID, "Lost", "")
		assert.ErrorIs(t, err, ErrInvalidStatus)
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("payment status ignored for cash on delivery", func(t *testing.T) {
		f.stock.SetStock(testProduct, domain.StockEntry{Size: "M", Quantity: 10})
		_, err := f.cart.AddItem(ctx, testUser, testProduct, "M", 2)
		require.NoError(t, err)
		order := placeOrder(t, f, domain.CashOnDelivery{})

		updated, err := f.order.UpdateStatus(ctx, order.ID, domain.OrderStatusShipping, domain.PaymentStatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusShipping, updated.Status)
		assert.Equal(t, domain.PaymentStatusPending, updated.Payment.Status)

		updated, err = f.order.UpdateStatus(ctx, order.ID, domain.OrderStatusCompleted, "")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCompleted, updated.Status)

		_, err = f.order.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, "")
		var te *IllegalTransitionError
		assert.ErrorAs(t, err, &te)
	})
}

func TestUpdateStatus_AdminCancelSettles(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	order := placeOrder(t, f, netBanking)

	updated, err := f.order.UpdateStatus(context.Background(), order.ID, domain.OrderStatusCancelled, "")
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusCancelled, updated.Status)
	assert.Equal(t, 10, f.available(t, testProduct, "M"))
	balance, _ := f.wallets.balance(testUser)
	assert.Equal(t, 460.0, balance)
}

func TestUpdateStatus_PaymentOnly(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	order := placeOrder(t, f, netBanking)

	updated, err := f.order.UpdateStatus(context.Background(), order.ID, "", domain.PaymentStatusFailed)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusShipping, updated.Status)
	assert.Equal(t, domain.PaymentStatusFailed, f.orders.stored(order.ID).Payment.Status)

	// a failed online payment is not refunded on cancel
	_, err = f.order.Cancel(context.Background(), CancelRequest{UserID: testUser, OrderID: order.ID})
	require.NoError(t, err)
	_, txs := f.wallets.balance(testUser)
	assert.Equal(t, 0, txs)
}

func TestGetAndList(t *testing.T) {
	f := newCheckoutFixture(t, CheckoutConfig{})
	ctx := context.Background()
	draft, err := f.checkout.CreateDraft(ctx, testUser)
	require.NoError(t, err)

	got, err := f.order.Get(ctx, testUser, draft.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDraft())

	_, err = f.order.Get(ctx, "someone-else", draft.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	for range 3 {
		f.orders.put(&domain.Order{ID: "o-" + uuid.NewString(), UserID: testUser, Status: domain.OrderStatusPending})
	}
	f.orders.put(&domain.Order{ID: "o-other", UserID: "user-2", Status: domain.OrderStatusPending})

	page, err := f.order.List(ctx, testUser, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)

	all, err := f.order.ListAll(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.Total)
	assert.Equal(t, 1, all.CurrentPage)
}
