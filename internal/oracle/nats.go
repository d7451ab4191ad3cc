package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"MintVault/internal/observability"
)

const (
	// SubjectPrice is the request-reply subject of the price oracle.
	SubjectPrice = "oracle.price.get"
	// SubjectCollateral is the request-reply subject of the collateral oracle.
	SubjectCollateral = "oracle.collateral.get"

	// DefaultTimeout bounds a single oracle round trip.
	DefaultTimeout = 3 * time.Second
)

type priceRequest struct {
	Asset string `json:"asset"`
}

type priceReply struct {
	Rate  string `json:"rate"`
	Error string `json:"error,omitempty"`
}

type collateralReply struct {
	Rate       string `json:"rate"`
	Multiplier string `json:"multiplier"`
	IsRevoked  bool   `json:"is_revoked"`
	Error      string `json:"error,omitempty"`
}

// NATSClient resolves prices over NATS request-reply. It serves both oracle
// interfaces; the two subjects are answered by independent upstream services.
type NATSClient struct {
	nc      *nats.Conn
	timeout time.Duration
	log     zerolog.Logger
	metrics *observability.Metrics
}

// NewNATSClient wraps an established NATS connection.
func NewNATSClient(nc *nats.Conn, timeout time.Duration, metrics *observability.Metrics) *NATSClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &NATSClient{
		nc:      nc,
		timeout: timeout,
		log:     observability.NewLogger("oracle"),
		metrics: metrics,
	}
}

// Connect establishes a NATS connection suitable for oracle traffic.
func Connect(url string) (*nats.Conn, error) {
	log := observability.NewLogger("oracle")

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

// Price implements PriceOracle over the oracle.price.get subject.
func (c *NATSClient) Price(ctx context.Context, token string) (decimal.Decimal, error) {
	start := time.Now()
	c.metrics.OracleRequests.WithLabelValues("price").Inc()

	data, err := c.request(ctx, SubjectPrice, priceRequest{Asset: token})
	if err != nil {
		c.metrics.OracleErrors.WithLabelValues("price", "transport").Inc()
		return decimal.Decimal{}, err
	}

	var reply priceReply
	if err := json.Unmarshal(data, &reply); err != nil {
		c.metrics.OracleErrors.WithLabelValues("price", "decode").Inc()
		return decimal.Decimal{}, fmt.Errorf("%w: decode price reply: %v", ErrUnavailable, err)
	}
	if reply.Error != "" {
		c.metrics.OracleErrors.WithLabelValues("price", "upstream").Inc()
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnknownAsset, reply.Error)
	}

	rate, err := decimal.NewFromString(reply.Rate)
	if err != nil {
		c.metrics.OracleErrors.WithLabelValues("price", "decode").Inc()
		return decimal.Decimal{}, fmt.Errorf("%w: bad rate %q", ErrUnavailable, reply.Rate)
	}

	c.metrics.OracleDuration.WithLabelValues("price").Observe(time.Since(start).Seconds())
	c.log.Debug().Str("asset", token).Str("rate", rate.String()).Msg("price resolved")
	return rate, nil
}

// Collateral implements CollateralOracle over the oracle.collateral.get subject.
func (c *NATSClient) Collateral(ctx context.Context, id string) (CollateralInfo, error) {
	start := time.Now()
	c.metrics.OracleRequests.WithLabelValues("collateral").Inc()

	data, err := c.request(ctx, SubjectCollateral, priceRequest{Asset: id})
	if err != nil {
		c.metrics.OracleErrors.WithLabelValues("collateral", "transport").Inc()
		return CollateralInfo{}, err
	}

	var reply collateralReply
	if err := json.Unmarshal(data, &reply); err != nil {
		c.metrics.OracleErrors.WithLabelValues("collateral", "decode").Inc()
		return CollateralInfo{}, fmt.Errorf("%w: decode collateral reply: %v", ErrUnavailable, err)
	}
	if reply.Error != "" {
		c.metrics.OracleErrors.WithLabelValues("collateral", "upstream").Inc()
		return CollateralInfo{}, fmt.Errorf("%w: %s", ErrUnknownAsset, reply.Error)
	}

	rate, err := decimal.NewFromString(reply.Rate)
	if err != nil {
		c.metrics.OracleErrors.WithLabelValues("collateral", "decode").Inc()
		return CollateralInfo{}, fmt.Errorf("%w: bad rate %q", ErrUnavailable, reply.Rate)
	}
	multiplier, err := decimal.NewFromString(reply.Multiplier)
	if err != nil {
		c.metrics.OracleErrors.WithLabelValues("collateral", "decode").Inc()
		return CollateralInfo{}, fmt.Errorf("%w: bad multiplier %q", ErrUnavailable, reply.Multiplier)
	}

	c.metrics.OracleDuration.WithLabelValues("collateral").Observe(time.Since(start).Seconds())
	c.log.Debug().
		Str("collateral", id).
		Str("rate", rate.String()).
		Str("multiplier", multiplier.String()).
		Bool("revoked", reply.IsRevoked).
		Msg("collateral resolved")

	return CollateralInfo{Price: rate, Multiplier: multiplier, Revoked: reply.IsRevoked}, nil
}

func (c *NATSClient) request(ctx context.Context, subject string, req interface{}) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrUnavailable, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.nc.RequestWithContext(reqCtx, subject, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, subject, err)
	}
	return msg.Data, nil
}
