package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"perp_bot/internal/helper"
	"perp_bot/internal/models"
	"perp_bot/internal/modules/config"
	"perp_bot/internal/modules/health/service"
	"perp_bot/pkg/logger"

	"github.com/gorilla/websocket"
)

const reconnectDelay = 5 * time.Second

// Stream — combined-stream клиент клайнов. Наружу уходят только закрытые
// свечи; промежуточные апдейты режутся прямо на границе.
type Stream struct {
	cfg    *config.Config
	state  *service.State
	dialer *websocket.Dialer
}

func NewStream(cfg *config.Config, state *service.State) *Stream {
	return &Stream{
		cfg:    cfg,
		state:  state,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (s *Stream) url() string {
	streams := make([]string, 0, len(s.cfg.Symbols)*len(s.cfg.Timeframes))
	for _, sym := range s.cfg.Symbols {
		for _, tf := range s.cfg.Timeframes {
			streams = append(streams, strings.ToLower(sym)+"@kline_"+helper.NormTF(tf))
		}
	}
	return s.cfg.Venue.WSURL + "?streams=" + strings.Join(streams, "/")
}

// Start держит соединение до отмены контекста, с переподключением.
func (s *Stream) Start(ctx context.Context, out chan<- models.CandleTick) {
	for {
		if err := s.runOnce(ctx, out); err != nil {
			logger.Error("kline stream: %v", err)
		}
		s.state.SetStreamUp(false)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Stream) runOnce(ctx context.Context, out chan<- models.CandleTick) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	s.state.SetStreamUp(true)
	logger.Info("kline stream connected: %d symbols x %d timeframes",
		len(s.cfg.Symbols), len(s.cfg.Timeframes))

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		ct, ok, err := parseKline(data)
		if err != nil {
			// чужое сообщение на границе — отбрасываем, не гадаем по ключам
			logger.Warn("kline parse: %v", err)
			continue
		}
		if !ok {
			continue // свеча ещё не закрыта
		}

		s.state.TouchBar(ct.End)

		select {
		case out <- ct:
		case <-ctx.Done():
			return nil
		}
	}
}

type klineEnvelope struct {
	Stream string `json:"stream"`
	Data   struct {
		Event string `json:"e"`
		Kline struct {
			Start  int64  `json:"t"`
			End    int64  `json:"T"`
			Symbol string `json:"s"`
			TF     string `json:"i"`
			Open   string `json:"o"`
			Close  string `json:"c"`
			High   string `json:"h"`
			Low    string `json:"l"`
			Volume string `json:"v"`
			Final  bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

// parseKline возвращает (tick, закрыта ли свеча, ошибка формата).
func parseKline(data []byte) (models.CandleTick, bool, error) {
	var env klineEnvelope
	if err := unmarshal(data, &env); err != nil {
		return models.CandleTick{}, false, err
	}
	if env.Data.Event != "kline" {
		return models.CandleTick{}, false, fmt.Errorf("unexpected event %q", env.Data.Event)
	}

	k := env.Data.Kline
	if !k.Final {
		return models.CandleTick{}, false, nil
	}

	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return models.CandleTick{}, false, fmt.Errorf("bad open %q", k.Open)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return models.CandleTick{}, false, fmt.Errorf("bad high %q", k.High)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return models.CandleTick{}, false, fmt.Errorf("bad low %q", k.Low)
	}
	closePx, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return models.CandleTick{}, false, fmt.Errorf("bad close %q", k.Close)
	}
	vol, _ := strconv.ParseFloat(k.Volume, 64)

	return models.CandleTick{
		Symbol:    k.Symbol,
		Timeframe: k.TF,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    vol,
		Start:     time.UnixMilli(k.Start),
		End:       time.UnixMilli(k.End),
	}, true, nil
}
