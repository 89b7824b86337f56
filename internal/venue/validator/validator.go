// Package validator exercises a concrete adapter against the venue contract
// and scores it. It is a black-box check: it runs unmodified against any
// implementation, with no knowledge of adapter internals. Adapters scoring
// below the threshold are blocked from live routing.
package validator

import (
	"context"
	"errors"
	"fmt"

	"parity/internal/venue"

	"github.com/google/uuid"
)

// Threshold is the minimum score an adapter needs to be registered.
const Threshold = 90.0

type Validator struct {
	threshold float64
}

func New() *Validator {
	return &Validator{threshold: Threshold}
}

// Validate runs the structural and functional checks against adapter. The
// adapter must be freshly constructed (disconnected); the state-machine
// checks depend on observing the rejection paths before connecting. It
// should point at a sandbox or mock backend: the smoke flow places and
// cancels a real order.
func (v *Validator) Validate(ctx context.Context, adapter venue.Adapter) Report {
	rep := Report{Venue: adapter.Name(), Threshold: v.threshold}

	// Structural checks.
	rep.add("name is non-empty", adapter.Name() != "", "")
	caps := adapter.Capabilities()
	rep.add("declares market data capability", caps.MarketData, "")
	rep.add("declares order capability", caps.Orders, "")
	limits := adapter.RateLimits()
	rep.add("rate limit window is positive", limits.Window > 0,
		fmt.Sprintf("window=%s", limits.Window))
	rep.add("public rate limit is positive", limits.PublicPerWindow > 0,
		fmt.Sprintf("public=%d", limits.PublicPerWindow))

	// State machine: calls must be rejected before the right state, with
	// taxonomy errors rather than attempted network calls.
	err := adapter.Authenticate(ctx)
	rep.add("authenticate before connect is rejected",
		isCode(err, venue.CodeConnection, venue.CodeAuthentication),
		errDetail(err))
	_, err = adapter.Balances(ctx)
	rep.add("account call before authenticate is rejected",
		isCode(err, venue.CodeConnection, venue.CodeAuthentication),
		errDetail(err))

	// Validation must fire before any network call.
	_, err = adapter.CreateOrder(ctx, venue.OrderSpec{Symbol: "", Side: venue.SideBuy})
	rep.add("malformed order spec is rejected with validation error",
		isCode(err, venue.CodeValidation), errDetail(err))

	// Functional smoke flow.
	if err := adapter.Connect(ctx); err != nil {
		rep.add("connect succeeds", false, errDetail(err))
		rep.finish()
		return rep
	}
	rep.add("connect succeeds", true, "")
	rep.add("healthy after connect", adapter.Healthy(), "")

	if err := adapter.Authenticate(ctx); err != nil {
		rep.add("authenticate succeeds", false, errDetail(err))
		rep.finish()
		return rep
	}
	rep.add("authenticate succeeds", true, "")

	err = adapter.ValidateCredentials(ctx)
	rep.add("credentials validate", err == nil, errDetail(err))

	symbols, err := adapter.SupportedSymbols(ctx)
	rep.add("supported symbols is non-empty", err == nil && len(symbols) > 0, errDetail(err))

	var probeSymbol string
	if len(symbols) > 0 {
		probeSymbol = symbols[0]
	}
	if caps.MarketData && probeSymbol != "" {
		md, err := adapter.MarketData(ctx, probeSymbol)
		rep.add("market data fetch succeeds", err == nil && md != nil && md.Last > 0, errDetail(err))
	}
	if caps.OrderBook && probeSymbol != "" {
		book, err := adapter.OrderBook(ctx, probeSymbol, 5)
		rep.add("order book fetch succeeds", err == nil && book != nil && len(book.Bids) > 0, errDetail(err))
	}
	if caps.Candles && probeSymbol != "" {
		candles, err := adapter.Candles(ctx, probeSymbol, "1m", 10)
		rep.add("candles fetch succeeds", err == nil && len(candles) > 0, errDetail(err))
	}
	balances, err := adapter.Balances(ctx)
	rep.add("balances fetch succeeds", err == nil && balances != nil, errDetail(err))

	v.smokeOrder(ctx, adapter, probeSymbol, &rep)

	err = adapter.Disconnect(ctx)
	rep.add("disconnect succeeds", err == nil, errDetail(err))
	rep.add("unhealthy after disconnect", !adapter.Healthy(), "")

	rep.finish()
	return rep
}

// smokeOrder places a far-from-market limit order and cancels it again.
func (v *Validator) smokeOrder(ctx context.Context, adapter venue.Adapter, probeSymbol string, rep *Report) {
	if probeSymbol == "" {
		rep.add("smoke order placed", false, "no probe symbol available")
		return
	}
	md, err := adapter.MarketData(ctx, probeSymbol)
	if err != nil || md == nil || md.Last <= 0 {
		rep.add("smoke order placed", false, "no reference price: "+errDetail(err))
		return
	}
	spec := venue.OrderSpec{
		Symbol:        probeSymbol,
		Side:          venue.SideBuy,
		Type:          venue.OrderTypeLimit,
		Quantity:      0.001,
		Price:         md.Last * 0.5, // far below market so it rests unfilled
		ClientOrderID: "contract-check-" + uuid.NewString()[:8],
	}
	order, err := adapter.CreateOrder(ctx, spec)
	if err != nil || order == nil {
		rep.add("smoke order placed", false, errDetail(err))
		return
	}
	rep.add("smoke order placed", true, "")

	fetched, err := adapter.GetOrder(ctx, probeSymbol, order.VenueOrderID)
	rep.add("smoke order retrievable", err == nil && fetched != nil && fetched.VenueOrderID == order.VenueOrderID, errDetail(err))

	err = adapter.CancelOrder(ctx, probeSymbol, order.VenueOrderID)
	rep.add("smoke order cancelled", err == nil, errDetail(err))
}

// Register gates factory registration on the report: adapters below the
// threshold never reach live routing.
func Register(f *venue.Factory, name string, b venue.Builder, rep Report) error {
	if !rep.Passed() {
		return fmt.Errorf("adapter %s scored %.1f, below threshold %.1f; registration refused",
			name, rep.Score, rep.Threshold)
	}
	f.Register(name, b)
	return nil
}

func isCode(err error, codes ...venue.ErrorCode) bool {
	if err == nil {
		return false
	}
	var ve *venue.Error
	if !errors.As(err, &ve) {
		return false
	}
	for _, c := range codes {
		if ve.Code == c {
			return true
		}
	}
	return false
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
