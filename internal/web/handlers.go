package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"github.com/vitos/trade_alert_relay/internal/domain"
	"go.uber.org/zap"
)

type statusEnvelope struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Trend     string `json:"trend,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) writeEnvelope(w http.ResponseWriter, env statusEnvelope) {
	env.Timestamp = time.Now().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(env); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeEnvelope(w, statusEnvelope{Status: "error", Message: "Failed to read request body"})
		return nil, false
	}
	return body, true
}

func (s *Server) handleGold(w http.ResponseWriter, r *http.Request) {
	s.handleInstrument(w, r, s.gold, "Gold")
}

func (s *Server) handleNQ(w http.ResponseWriter, r *http.Request) {
	s.handleInstrument(w, r, s.nq, "NQ")
}

func (s *Server) handleInstrument(w http.ResponseWriter, r *http.Request, engine InstrumentRelay, name string) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	s.logger.Info("Received instrument payload",
		zap.String("instrument", name),
		zap.ByteString("payload", body))

	action := gjson.GetBytes(body, "action").String()
	if action == "" {
		s.writeEnvelope(w, statusEnvelope{Status: "error", Message: "Action is required"})
		return
	}

	switch action {
	case "bullish_entry", "bearish_entry":
		priceStr := gjson.GetBytes(body, "price").String()
		if priceStr == "" {
			s.writeEnvelope(w, statusEnvelope{
				Status:  "error",
				Message: fmt.Sprintf("Price is required for %s action", action),
			})
			return
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			s.writeEnvelope(w, statusEnvelope{
				Status:  "error",
				Message: fmt.Sprintf("Invalid price value: %s", priceStr),
			})
			return
		}
		target50 := gjson.GetBytes(body, "target_50").String()

		var accepted bool
		var direction string
		if action == "bullish_entry" {
			accepted = engine.BullishEntry(r.Context(), price, target50)
			direction = "bullish"
		} else {
			accepted = engine.BearishEntry(r.Context(), price, target50)
			direction = "bearish"
		}
		if !accepted {
			s.writeEnvelope(w, statusEnvelope{
				Status:  "success",
				Message: fmt.Sprintf("%s %s entry skipped due to trend mismatch", name, direction),
			})
			return
		}
		s.writeEnvelope(w, statusEnvelope{
			Status:  "success",
			Message: fmt.Sprintf("%s %s entry processed successfully", name, direction),
		})

	case "target_50":
		quantity := int(gjson.GetBytes(body, "quantity").Int())
		engine.HalfTarget(r.Context(), quantity)
		s.writeEnvelope(w, statusEnvelope{
			Status:  "success",
			Message: fmt.Sprintf("%s 50%% target processed successfully", name),
		})

	case "exit":
		engine.Exit(r.Context())
		s.writeEnvelope(w, statusEnvelope{
			Status:  "success",
			Message: fmt.Sprintf("%s exit processed successfully", name),
		})

	default:
		s.writeEnvelope(w, statusEnvelope{
			Status:  "error",
			Message: fmt.Sprintf("Unknown action: %s. Supported actions: bullish_entry, bearish_entry, target_50, exit", action),
		})
	}
}

func (s *Server) handleGoldTrend(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	s.logger.Info("Received Gold Trend payload", zap.ByteString("payload", body))

	trend := gjson.GetBytes(body, "trend").String()
	if trend == "" {
		s.writeEnvelope(w, statusEnvelope{Status: "error", Message: "Trend is required"})
		return
	}

	set, err := s.gold.SetTrend(trend)
	if err != nil {
		s.writeEnvelope(w, statusEnvelope{Status: "error", Message: err.Error()})
		return
	}
	s.writeEnvelope(w, statusEnvelope{
		Status:  "success",
		Message: fmt.Sprintf("Gold trend set to %s", set),
		Trend:   string(set),
	})
}

// shape-matched response messages for the alert relay endpoint
var kindMessages = map[domain.SignalKind]string{
	domain.KindTargetHit:      "Target 1 Hit message processed successfully",
	domain.KindTarget2Hit:     "Target 2 Hit message processed successfully",
	domain.KindStopLossHit:    "Stop Loss Hit message processed successfully",
	domain.KindEntryTriggered: "Long Triggered message processed successfully",
	domain.KindTrim:           "Trim message processed successfully",
}

func (s *Server) handleFBD(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	s.logger.Info("Received FBD payload", zap.ByteString("payload", body))

	embeds := gjson.GetBytes(body, "embeds")
	if !embeds.IsArray() || len(embeds.Array()) == 0 {
		s.writeEnvelope(w, statusEnvelope{Status: "error", Message: "No embeds found in payload"})
		return
	}
	description := gjson.GetBytes(body, "embeds.0.description").String()
	if description == "" {
		s.writeEnvelope(w, statusEnvelope{Status: "error", Message: "No description found in embed"})
		return
	}

	kind, matched := s.relay.ProcessText(r.Context(), description, domain.SourceFBDEndpoint)
	if !matched {
		s.writeEnvelope(w, statusEnvelope{
			Status:  "info",
			Message: "No Long Triggered, Target 1, Target 2, or Stop Loss pattern matched",
		})
		return
	}
	message, ok := kindMessages[kind]
	if !ok {
		message = fmt.Sprintf("%s message processed successfully", kind)
	}
	s.writeEnvelope(w, statusEnvelope{Status: "success", Message: message})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type slotStatus struct {
		Open bool `json:"open"`
	}
	resp := map[string]interface{}{
		"slots": map[string]slotStatus{
			string(domain.SlotPrimary): {Open: s.store.HasOpen(r.Context(), domain.SlotPrimary)},
			string(domain.SlotGold):    {Open: s.store.HasOpen(r.Context(), domain.SlotGold)},
			string(domain.SlotNQ):      {Open: s.store.HasOpen(r.Context(), domain.SlotNQ)},
		},
		"gold_trend": string(s.gold.Trend()),
		"timestamp":  time.Now().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to encode status", zap.Error(err))
	}
}
