package mock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/harunnryd/tutorcore/pkg/gateway"
)

type SpeechConfig struct {
	Transcript string
	Token      string
	// Body overrides the generated response.
	Body string
	Err  error
	// Store receives a result artifact for async requests that ask for
	// delivery to storage, mimicking the recognizer's behavior.
	Store *ObjectStore
}

// SpeechTransport is a scripted gateway.SpeechTransport.
type SpeechTransport struct {
	cfg      SpeechConfig
	mu       sync.Mutex
	requests []gateway.SpeechRequest
}

func NewSpeechTransport(cfg SpeechConfig) *SpeechTransport {
	if cfg.Transcript == "" {
		cfg.Transcript = "mock transcript"
	}
	if cfg.Token == "" {
		cfg.Token = "mock-token"
	}
	return &SpeechTransport{cfg: cfg}
}

func (s *SpeechTransport) Name() string { return "mock_speech" }

func (s *SpeechTransport) Recognize(ctx context.Context, req gateway.SpeechRequest) ([]byte, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.cfg.Err != nil {
		return nil, s.cfg.Err
	}
	if s.cfg.Body != "" {
		return []byte(s.cfg.Body), nil
	}
	if req.Completion == gateway.ModeAsync {
		if req.ResultToObs && s.cfg.Store != nil {
			artifact, _ := json.Marshal(map[string]any{"result": "COMPLETED", "text": s.cfg.Transcript})
			_ = s.cfg.Store.Put(ctx, ResultKey(req.DataKey), artifact, "application/json")
		}
		return json.Marshal(map[string]any{"result": "STARTED", "message": "Started", "token": s.cfg.Token})
	}
	return json.Marshal(map[string]any{"result": "COMPLETED", "message": "Succeeded", "text": s.cfg.Transcript})
}

// Requests returns every recognition request received so far.
func (s *SpeechTransport) Requests() []gateway.SpeechRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gateway.SpeechRequest(nil), s.requests...)
}

// ResultKey is where the mock recognizer drops the artifact for dataKey.
func ResultKey(dataKey string) string {
	return dataKey + "/result.json"
}
