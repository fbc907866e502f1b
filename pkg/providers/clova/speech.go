package clova

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/tutorcore/pkg/errorsx"
	"github.com/harunnryd/tutorcore/pkg/gateway"
)

const headerSpeechKey = "X-CLOVASPEECH-API-KEY"

type SpeechConfig struct {
	InvokeURL string
	Secret    string
	Timeout   time.Duration
	Client    *http.Client
}

// SpeechClient submits object-storage recognition requests.
type SpeechClient struct {
	cfg    SpeechConfig
	client *http.Client
}

func NewSpeechClient(cfg SpeechConfig) *SpeechClient {
	return &SpeechClient{cfg: cfg, client: newHTTPClient(cfg.Client, cfg.Timeout)}
}

func (s *SpeechClient) Name() string { return "clova_speech" }

type diarization struct {
	Enable bool `json:"enable"`
}

type recognizeBody struct {
	DataKey       string      `json:"dataKey"`
	Language      string      `json:"language"`
	Completion    string      `json:"completion"`
	ResultToObs   bool        `json:"resultToObs"`
	WordAlignment bool        `json:"wordAlignment"`
	FullText      bool        `json:"fullText"`
	Diarization   diarization `json:"diarization"`
}

func (s *SpeechClient) Recognize(ctx context.Context, req gateway.SpeechRequest) ([]byte, error) {
	if strings.TrimSpace(s.cfg.InvokeURL) == "" || strings.TrimSpace(s.cfg.Secret) == "" {
		return nil, errorsx.New(errorsx.ReasonConfig, "clova speech credentials are not configured")
	}
	payload, err := json.Marshal(recognizeBody{
		DataKey:       req.DataKey,
		Language:      req.Language,
		Completion:    string(req.Completion),
		ResultToObs:   req.ResultToObs,
		WordAlignment: req.WordAlignment,
		FullText:      req.FullText,
		Diarization:   diarization{Enable: req.Diarization},
	})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonDecode)
	}
	url := strings.TrimRight(s.cfg.InvokeURL, "/") + "/recognizer/object-storage"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonConfig)
	}
	httpReq.Header.Set("Accept", "application/json;UTF-8")
	httpReq.Header.Set("Content-Type", "application/json;UTF-8")
	httpReq.Header.Set(headerSpeechKey, s.cfg.Secret)

	resp, err := doRequest(s.client, s.Name(), httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTransport)
	}
	return body, nil
}
