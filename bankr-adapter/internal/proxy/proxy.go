package proxy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberproxy "github.com/gofiber/fiber/v2/middleware/proxy"
	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/bankr-adapter/internal/bankr"
	"github.com/Checker-Finance/orders/internal/metrics"
)

// FailureMessage is the error reported when the backend cannot be reached.
const FailureMessage = "Proxy request failed"

// DefaultTimeout bounds one forwarded request.
const DefaultTimeout = 30 * time.Second

// Proxy forwards same-origin requests to the orders backend and injects the
// API key server side, so browsers never see it.
type Proxy struct {
	logger  *zap.Logger
	baseURL string
	apiKey  bankr.APIKeyFunc
	timeout time.Duration
}

// New creates a proxy for baseURL. apiKey may be nil.
func New(logger *zap.Logger, baseURL string, apiKey bankr.APIKeyFunc, timeout time.Duration) *Proxy {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Proxy{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
	}
}

// Register mounts the proxy under prefix, e.g. "/api/order".
func (p *Proxy) Register(app fiber.Router, prefix string) {
	app.Get(prefix+"/*", p.Forward)
	app.Post(prefix+"/*", p.Forward)
}

// Forward relays the request to baseURL/<wildcard path>. The upstream status
// and JSON body are returned unchanged.
func (p *Proxy) Forward(c *fiber.Ctx) error {
	method := c.Method()
	target := p.baseURL + "/" + strings.TrimLeft(c.Params("*"), "/")
	if qs := c.Request().URI().QueryString(); len(qs) > 0 {
		target += "?" + string(qs)
	}

	key := ""
	if p.apiKey != nil {
		k, err := p.apiKey(c.UserContext())
		if err != nil {
			return p.fail(c, method, target, fmt.Errorf("resolve api key: %w", err))
		}
		key = k
	}

	req := &c.Request().Header
	req.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Del(fiber.HeaderAuthorization)
	req.Del(fiber.HeaderCookie)
	req.Del(fiber.HeaderAcceptEncoding)
	req.Del("x-api-key")
	if key != "" {
		req.Set("x-api-key", key)
	}
	if method == fiber.MethodGet || method == fiber.MethodHead {
		c.Request().SetBody(nil)
	}

	if err := fiberproxy.DoTimeout(c, target, p.timeout); err != nil {
		return p.fail(c, method, target, err)
	}

	status := c.Response().StatusCode()
	if method != fiber.MethodHead && !json.Valid(c.Response().Body()) {
		return p.fail(c, method, target, fmt.Errorf("upstream returned non-JSON body with status %d", status))
	}

	c.Response().Header.Del(fiber.HeaderSetCookie)
	metrics.IncProxyRequest(method, strconv.Itoa(status))
	p.logger.Debug("proxy.forwarded",
		zap.String("method", method),
		zap.String("target", target),
		zap.Int("status", status))
	return nil
}

func (p *Proxy) fail(c *fiber.Ctx, method, target string, err error) error {
	p.logger.Warn("proxy.forward_failed",
		zap.String("method", method),
		zap.String("target", target),
		zap.Error(err))
	metrics.IncProxyRequest(method, "502")
	c.Response().Reset()
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error":   FailureMessage,
		"message": err.Error(),
	})
}
