package mock

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/harunnryd/tutorcore/pkg/errorsx"
	"github.com/harunnryd/tutorcore/pkg/gateway"
)

var ErrNotFound = errors.New("object not found")

// ObjectStore is an in-memory gateway.ObjectStore that counts calls.
type ObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string

	ListErr error
	GetErr  error
	PutErr  error

	Lists   int
	Gets    int
	Puts    int
	Deletes int
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *ObjectStore) List(ctx context.Context, prefix string) ([]gateway.ObjectEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lists++
	if s.ListErr != nil {
		return nil, errorsx.Wrap(s.ListErr, errorsx.ReasonTransport)
	}
	var out []gateway.ObjectEntry
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, gateway.ObjectEntry{Key: key})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gets++
	if s.GetErr != nil {
		return nil, errorsx.Wrap(s.GetErr, errorsx.ReasonTransport)
	}
	body, ok := s.objects[key]
	if !ok {
		return nil, errorsx.Wrap(ErrNotFound, errorsx.ReasonTransport)
	}
	return append([]byte(nil), body...), nil
}

func (s *ObjectStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Puts++
	if s.PutErr != nil {
		return errorsx.Wrap(s.PutErr, errorsx.ReasonTransport)
	}
	s.objects[key] = append([]byte(nil), body...)
	s.types[key] = contentType
	return nil
}

func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deletes++
	delete(s.objects, key)
	delete(s.types, key)
	return nil
}

// ContentType returns the content type stored with key.
func (s *ObjectStore) ContentType(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.types[key]
}

// Keys returns all stored keys in sorted order.
func (s *ObjectStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
