package tutor

import (
	"strings"

	"github.com/harunnryd/tutorcore/pkg/config"
	"github.com/harunnryd/tutorcore/pkg/errorsx"
	"github.com/harunnryd/tutorcore/pkg/gateway"
)

type CompletionFactory func(vendor config.VendorConfig) (gateway.CompletionTransport, error)
type SpeechFactory func(vendor config.VendorConfig) (gateway.SpeechTransport, error)
type StorageFactory func(vendor config.VendorConfig) (gateway.ObjectStore, error)

// ProviderRegistry maps vendor provider names to gateway constructors.
type ProviderRegistry struct {
	completion map[string]CompletionFactory
	speech     map[string]SpeechFactory
	storage    map[string]StorageFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		completion: make(map[string]CompletionFactory),
		speech:     make(map[string]SpeechFactory),
		storage:    make(map[string]StorageFactory),
	}
}

func providerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *ProviderRegistry) RegisterCompletion(name string, factory CompletionFactory) {
	r.completion[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterSpeech(name string, factory SpeechFactory) {
	r.speech[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterStorage(name string, factory StorageFactory) {
	r.storage[providerKey(name)] = factory
}

func (r *ProviderRegistry) BuildCompletion(vendor config.VendorConfig) (gateway.CompletionTransport, error) {
	fn := r.completion[providerKey(vendor.Provider)]
	if fn == nil {
		return nil, errorsx.New(errorsx.ReasonConfig, "llm provider not registered: %s", vendor.Provider)
	}
	return fn(vendor)
}

func (r *ProviderRegistry) BuildSpeech(vendor config.VendorConfig) (gateway.SpeechTransport, error) {
	fn := r.speech[providerKey(vendor.Provider)]
	if fn == nil {
		return nil, errorsx.New(errorsx.ReasonConfig, "speech provider not registered: %s", vendor.Provider)
	}
	return fn(vendor)
}

func (r *ProviderRegistry) BuildStorage(vendor config.VendorConfig) (gateway.ObjectStore, error) {
	fn := r.storage[providerKey(vendor.Provider)]
	if fn == nil {
		return nil, errorsx.New(errorsx.ReasonConfig, "storage provider not registered: %s", vendor.Provider)
	}
	return fn(vendor)
}
