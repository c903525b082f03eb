package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"perp_bot/internal/modules/config"
	"perp_bot/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const callTimeout = 10 * time.Second

// Client — подписанный REST-клиент USDT-M фьючерсов.
// Читающие запросы идут через rate limiter + экспоненциальный ретрай,
// ордерные — без авторетрая: на неоднозначной ошибке дубль хуже отказа.
type Client struct {
	cfg *config.Config

	http      *http.Client
	limiter   *rate.Limiter
	apiKey    string
	apiSecret string
	baseURL   string

	recvWindow int
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:        cfg,
		http:       &http.Client{Timeout: callTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 5),
		apiKey:     cfg.Venue.APIKey,
		apiSecret:  cfg.Venue.APISecret,
		baseURL:    cfg.Venue.BaseURL,
		recvWindow: cfg.Venue.RecvWindow,
	}
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) signedQuery(params url.Values) string {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.Itoa(c.recvWindow))
	query := params.Encode()
	return query + "&signature=" + c.sign(query)
}

func (c *Client) do(ctx context.Context, method, path, query string, signed bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if query != "" {
		u += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

// doRead — идемпотентные чтения, ретраим с бэкоффом.
func (c *Client) doRead(ctx context.Context, path string, params url.Values, signed bool) ([]byte, error) {
	query := ""
	if signed {
		// подпись внутри operation: timestamp должен быть свежим на каждой попытке
	} else if params != nil {
		query = params.Encode()
	}

	var data []byte
	operation := func() error {
		q := query
		if signed {
			p := url.Values{}
			for k, vs := range params {
				for _, v := range vs {
					p.Add(k, v)
				}
			}
			q = c.signedQuery(p)
		}
		var err error
		data, err = c.do(ctx, http.MethodGet, path, q, signed)
		return err
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return nil, err
	}
	return data, nil
}

// doMutate — одна попытка, без ретрая.
func (c *Client) doMutate(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	return c.do(ctx, method, path, c.signedQuery(params), true)
}

// SyncServerTime проверяет расхождение часов с биржей. Фатально для старта:
// с уехавшими часами любая подпись невалидна.
func (c *Client) SyncServerTime(ctx context.Context) error {
	data, err := c.doRead(ctx, "/fapi/v1/time", nil, false)
	if err != nil {
		return fmt.Errorf("SyncServerTime: %w", err)
	}
	var r struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := unmarshal(data, &r); err != nil {
		return fmt.Errorf("SyncServerTime decode: %w; body=%s", err, string(data))
	}

	drift := time.Since(time.UnixMilli(r.ServerTime))
	if drift < 0 {
		drift = -drift
	}
	if drift > time.Duration(c.recvWindow)*time.Millisecond {
		return fmt.Errorf("SyncServerTime: clock drift %v exceeds recvWindow %dms", drift, c.recvWindow)
	}
	logger.Info("server time ok, drift=%v", drift)
	return nil
}
