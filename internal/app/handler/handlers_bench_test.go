package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/atinyakov/shorturl-microservice/internal/app/service"
	"github.com/atinyakov/shorturl-microservice/internal/logger"
	"github.com/atinyakov/shorturl-microservice/internal/models"
	"github.com/atinyakov/shorturl-microservice/internal/storage"
)

type loopbackResolver struct{}

func (loopbackResolver) LookupHost(context.Context, string) ([]string, error) {
	return []string{"127.0.0.1"}, nil
}

func benchService(b *testing.B) *service.URLService {
	b.Helper()

	zapLogger := logger.New().Log
	registry, err := storage.CreateMemoryStorage()
	if err != nil {
		b.Fatal(err)
	}
	return service.NewURL(service.NewValidator(loopbackResolver{}, 0, zapLogger), registry, zapLogger)
}

func BenchmarkShortenForm(b *testing.B) {
	postHandler := NewPost(benchService(b), logger.New().Log)
	body := url.Values{"url": {"https://example.com"}}.Encode()

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/shorturl", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		postHandler.Shorten(httptest.NewRecorder(), req)
	}
}

func BenchmarkShortenJSON(b *testing.B) {
	postHandler := NewPost(benchService(b), logger.New().Log)
	body, _ := json.Marshal(models.Request{URL: "https://example.com"})

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/shorturl", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		postHandler.Shorten(httptest.NewRecorder(), req)
	}
}

func BenchmarkByShort(b *testing.B) {
	svc := benchService(b)
	r, err := svc.Shorten(context.Background(), "https://example.com")
	if err != nil {
		b.Fatal(err)
	}
	id := strconv.FormatInt(r.ID, 10)
	getHandler := NewGet(svc, logger.New().Log)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		req := withID(httptest.NewRequest(http.MethodGet, "/api/shorturl/"+id, nil), id)
		getHandler.ByShort(httptest.NewRecorder(), req)
	}
}
