/*
Package ranking prices every eligible carrier for a shipment and orders
the results.

PURPOSE:
  A rank request is a calculation request without a carrier. The engine
  resolves the card and zone once, then fans out over the company's active
  carriers: serviceability check, then pricing per supported service type.

FAN-OUT:
  - bounded by MaxParallel (errgroup.SetLimit)
  - each serviceability call has its own CheckTimeout
  - a failed or timed-out check means "not serviceable" for that carrier
  - each worker writes only its own result slot; slots are merged after Wait

EXCLUSIONS:
  NotApplicable and InvalidRateCard drop an option silently. Anything else
  aborts the whole call.

ORDER:
  total asc, transit days asc, carrier asc, service type asc.

SEE ALSO:
  - pricing/calculator.go: Prepare / Prepared.Price
  - serviceability/checker.go: the collaborator
*/
package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/rate-engine/pricing"
	"github.com/warp/rate-engine/ratecard"
	"github.com/warp/rate-engine/serviceability"
)

const (
	DefaultMaxParallel  = 8
	DefaultCheckTimeout = 2 * time.Second
)

// Preparer resolves the per-route pricing state. pricing.Calculator implements it.
type Preparer interface {
	Prepare(ctx context.Context, req pricing.RouteRequest) (*pricing.Prepared, error)
}

// Request is a route plus an optional service type filter.
type Request struct {
	pricing.RouteRequest
	ServiceType string
}

type Result struct {
	Options          []pricing.Breakdown `json:"options"`
	TotalOptions     int                 `json:"total_options"`
	NoRatesAvailable bool                `json:"no_rates_available"`
}

type Config struct {
	MaxParallel  int
	CheckTimeout time.Duration
}

type Engine struct {
	prep     Preparer
	carriers pricing.CarrierSource
	checker  serviceability.Checker
	cfg      Config
	logger   *zap.Logger
}

func NewEngine(prep Preparer, carriers pricing.CarrierSource, checker serviceability.Checker, cfg Config, logger *zap.Logger) *Engine {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = DefaultCheckTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{prep: prep, carriers: carriers, checker: checker, cfg: cfg, logger: logger}
}

// Rank returns the priced options for every serviceable carrier.
func (e *Engine) Rank(ctx context.Context, req Request) (*Result, error) {
	prepared, err := e.prep.Prepare(ctx, req.RouteRequest)
	if err != nil {
		if pricing.IsExclusion(err) {
			e.logger.Info("no usable rate card for rank request",
				zap.String("company_id", string(req.CompanyID)), zap.Error(err))
			return &Result{Options: []pricing.Breakdown{}, NoRatesAvailable: true}, nil
		}
		return nil, err
	}

	configs, err := e.carriers.ListCarriers(ctx, req.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("list carriers: %w", err)
	}
	var active []ratecard.CarrierConfig
	for _, cc := range configs {
		if cc.Active {
			active = append(active, cc)
		}
	}

	var filter ratecard.ServiceType
	if req.ServiceType != "" {
		filter = ratecard.NormalizeService(req.ServiceType)
	}

	slots := make([][]pricing.Breakdown, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxParallel)

	for i, cc := range active {
		i, cc := i, cc
		g.Go(func() error {
			if !e.serviceable(gctx, cc.Carrier, req.DestinationPincode) {
				return nil
			}
			for _, svc := range cc.ServiceTypes {
				if filter != "" && svc != filter {
					continue
				}
				b, err := prepared.Price(cc.Carrier, svc, cc.TransitDays)
				if err != nil {
					if pricing.IsExclusion(err) {
						e.logger.Debug("option excluded",
							zap.String("carrier", string(cc.Carrier)),
							zap.String("service_type", string(svc)),
							zap.Error(err))
						continue
					}
					return fmt.Errorf("price %s/%s: %w", cc.Carrier, svc, err)
				}
				slots[i] = append(slots[i], *b)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	options := []pricing.Breakdown{}
	for _, s := range slots {
		options = append(options, s...)
	}
	Sort(options)

	return &Result{
		Options:          options,
		TotalOptions:     len(options),
		NoRatesAvailable: len(options) == 0,
	}, nil
}

func (e *Engine) serviceable(ctx context.Context, carrier ratecard.Carrier, pincode string) bool {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.CheckTimeout)
	defer cancel()

	ok, err := e.checker.Check(cctx, carrier, pincode)
	if err != nil {
		e.logger.Warn("serviceability check failed; treating as not serviceable",
			zap.String("carrier", string(carrier)),
			zap.String("pincode", pincode),
			zap.Error(err))
		return false
	}
	return ok
}

// Sort orders options by total, then transit days, carrier and service type.
func Sort(options []pricing.Breakdown) {
	sort.SliceStable(options, func(i, j int) bool {
		a, b := options[i], options[j]
		if c := a.Total.Cmp(b.Total); c != 0 {
			return c < 0
		}
		if a.TransitDays != b.TransitDays {
			return a.TransitDays < b.TransitDays
		}
		if a.Carrier != b.Carrier {
			return a.Carrier < b.Carrier
		}
		return a.ServiceType < b.ServiceType
	})
}
