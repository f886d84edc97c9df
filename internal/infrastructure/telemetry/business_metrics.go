package telemetry

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// BusinessMetrics records shop activity: orders placed, payments captured,
// cancellations and restocked units
type BusinessMetrics struct {
	ordersPlaced    *Counter
	orderValue      *Histogram
	revenueCents    *Counter
	paymentsTotal   *Counter
	ordersCancelled *Counter
	unitsRestocked  *Counter
	statusChanges   *Counter
}

// NewBusinessMetrics registers the shop instruments on meter
func NewBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	bm := &BusinessMetrics{}
	var err error
	if bm.ordersPlaced, err = NewCounter(meter, "shop_orders_placed_total", "Orders placed", "{orders}"); err != nil {
		return nil, err
	}
	if bm.orderValue, err = NewHistogram(meter, "shop_order_value", "Order amount including delivery", "{currency}", MoneyBuckets...); err != nil {
		return nil, err
	}
	if bm.revenueCents, err = NewCounter(meter, "shop_revenue_cents_total", "Captured card revenue in minor units", "{cents}"); err != nil {
		return nil, err
	}
	if bm.paymentsTotal, err = NewCounter(meter, "shop_payments_total", "Card payments captured", "{payments}"); err != nil {
		return nil, err
	}
	if bm.ordersCancelled, err = NewCounter(meter, "shop_orders_cancelled_total", "Orders cancelled before payment", "{orders}"); err != nil {
		return nil, err
	}
	if bm.unitsRestocked, err = NewCounter(meter, "shop_units_restocked_total", "Units returned to stock by cancellations", "{units}"); err != nil {
		return nil, err
	}
	if bm.statusChanges, err = NewCounter(meter, "shop_order_status_changes_total", "Admin fulfilment status changes", "{changes}"); err != nil {
		return nil, err
	}
	return bm, nil
}

// RecordOrderPlaced counts an order and its value
func (bm *BusinessMetrics) RecordOrderPlaced(ctx context.Context, paymentMethod string, amount decimal.Decimal) {
	attr := AttrPaymentMethod.String(paymentMethod)
	bm.ordersPlaced.Inc(ctx, attr)
	bm.orderValue.Record(ctx, amount.InexactFloat64(), attr)
}

// RecordPayment counts a captured payment and adds it to revenue
func (bm *BusinessMetrics) RecordPayment(ctx context.Context, amount decimal.Decimal) {
	bm.paymentsTotal.Inc(ctx)
	bm.revenueCents.Add(ctx, amount.Shift(2).Round(0).IntPart())
}

// RecordCancellation counts a cancelled order and the units it released
func (bm *BusinessMetrics) RecordCancellation(ctx context.Context, reason string, units int) {
	bm.ordersCancelled.Inc(ctx, AttrCancelReason.String(reason))
	if units > 0 {
		bm.unitsRestocked.Add(ctx, int64(units))
	}
}

// RecordStatusChange counts an admin status update
func (bm *BusinessMetrics) RecordStatusChange(ctx context.Context, status string) {
	bm.statusChanges.Inc(ctx, AttrOrderStatus.String(status))
}
