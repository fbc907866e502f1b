package tutor

import (
	"github.com/harunnryd/tutorcore/pkg/config"
	"github.com/harunnryd/tutorcore/pkg/configutil"
	"github.com/harunnryd/tutorcore/pkg/gateway"
	"github.com/harunnryd/tutorcore/pkg/providers/clova"
	"github.com/harunnryd/tutorcore/pkg/providers/mock"
	"github.com/harunnryd/tutorcore/pkg/providers/objectstore"
)

type clovaStudioSettings struct {
	Host      string `mapstructure:"host"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

var clovaStudioSchema = configutil.Schema{
	Name:     "vendors.llm.settings",
	Optional: []string{"host", "model", "api_key", "timeout_ms"},
}

type clovaSpeechSettings struct {
	URL       string `mapstructure:"url"`
	Secret    string `mapstructure:"secret"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

var clovaSpeechSchema = configutil.Schema{
	Name:     "vendors.speech.settings",
	Optional: []string{"url", "secret", "timeout_ms"},
}

type s3Settings struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
}

var s3Schema = configutil.Schema{
	Name:     "vendors.storage.settings",
	Required: []string{"bucket"},
	Optional: []string{"endpoint", "region", "access_key", "secret_key"},
}

type mockCompletionSettings struct {
	ResponseText string   `mapstructure:"response_text"`
	StreamLines  []string `mapstructure:"stream_lines"`
}

type mockSpeechSettings struct {
	Transcript string `mapstructure:"transcript"`
	Token      string `mapstructure:"token"`
}

func decodeVendor(vendor config.VendorConfig, schema *configutil.Schema, out any) error {
	if schema != nil {
		if err := configutil.ValidateSettings(vendor.Settings, *schema); err != nil {
			return err
		}
	}
	return configutil.DecodeSettings(vendor.Settings, out)
}

// DefaultProviders registers the clova, s3 and mock providers. The mock
// speech provider drops its async results into the mock store, so the two
// behave like a recognizer writing to a bucket.
func DefaultProviders() *ProviderRegistry {
	r := NewProviderRegistry()
	sharedStore := mock.NewObjectStore()

	r.RegisterCompletion("clova", func(vendor config.VendorConfig) (gateway.CompletionTransport, error) {
		var s clovaStudioSettings
		if err := decodeVendor(vendor, &clovaStudioSchema, &s); err != nil {
			return nil, err
		}
		return clova.NewCompletionClient(clova.CompletionConfig{
			Host:    s.Host,
			Model:   s.Model,
			APIKey:  s.APIKey,
			Timeout: configutil.Millis(s.TimeoutMS, 0),
		}), nil
	})
	r.RegisterSpeech("clova", func(vendor config.VendorConfig) (gateway.SpeechTransport, error) {
		var s clovaSpeechSettings
		if err := decodeVendor(vendor, &clovaSpeechSchema, &s); err != nil {
			return nil, err
		}
		return clova.NewSpeechClient(clova.SpeechConfig{
			InvokeURL: s.URL,
			Secret:    s.Secret,
			Timeout:   configutil.Millis(s.TimeoutMS, 0),
		}), nil
	})
	r.RegisterStorage("s3", func(vendor config.VendorConfig) (gateway.ObjectStore, error) {
		var s s3Settings
		if err := decodeVendor(vendor, &s3Schema, &s); err != nil {
			return nil, err
		}
		return objectstore.New(objectstore.Config{
			Endpoint:  s.Endpoint,
			Region:    s.Region,
			AccessKey: s.AccessKey,
			SecretKey: s.SecretKey,
			Bucket:    s.Bucket,
		})
	})

	r.RegisterCompletion("mock", func(vendor config.VendorConfig) (gateway.CompletionTransport, error) {
		var s mockCompletionSettings
		if err := decodeVendor(vendor, nil, &s); err != nil {
			return nil, err
		}
		return mock.NewCompletionTransport(mock.CompletionConfig{
			ResponseText: s.ResponseText,
			StreamLines:  s.StreamLines,
		}), nil
	})
	r.RegisterSpeech("mock", func(vendor config.VendorConfig) (gateway.SpeechTransport, error) {
		var s mockSpeechSettings
		if err := decodeVendor(vendor, nil, &s); err != nil {
			return nil, err
		}
		return mock.NewSpeechTransport(mock.SpeechConfig{
			Transcript: s.Transcript,
			Token:      s.Token,
			Store:      sharedStore,
		}), nil
	})
	r.RegisterStorage("mock", func(config.VendorConfig) (gateway.ObjectStore, error) {
		return sharedStore, nil
	})
	return r
}
