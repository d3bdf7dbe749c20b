package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mock "mercator-hq/conduit/internal/providers"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/providers"
)

func newTestRouter(t *testing.T, server *mock.MockServer, models map[string]providers.ModelConfig) (*ModelRouter, *mock.StaticTokens) {
	t.Helper()
	tokens := &mock.StaticTokens{Token: "tok"}
	client := providers.NewHTTPClient(providers.ClientConfig{Name: "backend", Timeout: 5 * time.Second})
	r := NewModelRouter(Config{BaseURL: server.URL(), CacheTTL: time.Minute}, models, tokens, client)
	t.Cleanup(r.Close)
	return r, tokens
}

func testModels() map[string]providers.ModelConfig {
	return map[string]providers.ModelConfig{
		"claude":  {Provider: "anthropic", APIType: providers.APITypeProvider, RequestFormat: providers.FormatAnthropic, VendorModel: "anthropic--claude-3.5-sonnet"},
		"gpt-4o":  {Provider: "openai", APIType: providers.APITypeProvider},
		"pinned":  {Provider: "openai", APIType: providers.APITypeProvider, DeploymentID: "dpinned"},
		"gemini":  {Provider: "google", APIType: providers.APITypeDirect},
		"missing": {Provider: "openai", APIType: providers.APITypeProvider},
	}
}

func TestModelRouter_Resolve(t *testing.T) {
	server := mock.NewMockServer()
	defer server.Close()
	server.SetDeployments(map[string]string{
		"anthropic--claude-3.5-sonnet": "d111",
		"gpt-4o":                       "d222",
	})

	r, _ := newTestRouter(t, server, testModels())
	ctx := context.Background()

	tests := []struct {
		model      string
		deployment string
	}{
		{model: "claude", deployment: "d111"},
		{model: "gpt-4o", deployment: "d222"},
		{model: "pinned", deployment: "dpinned"},
		{model: "gemini", deployment: ""},
		{model: "missing", deployment: ""},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			m, err := r.Resolve(ctx, tt.model)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.Name != tt.model {
				t.Errorf("expected name %q, got %q", tt.model, m.Name)
			}
			if m.DeploymentID != tt.deployment {
				t.Errorf("expected deployment %q, got %q", tt.deployment, m.DeploymentID)
			}
		})
	}

	// "missing" is answered from the negative entry written by the first discovery
	if got := server.RequestCount("/v2/lm/deployments"); got != 1 {
		t.Errorf("expected 1 discovery request, got %d", got)
	}
	h := server.LastHeader("/v2/lm/deployments")
	if err := mock.ExpectHeader(h, "Authorization", "Bearer tok"); err != nil {
		t.Error(err)
	}
	if err := mock.ExpectHeader(h, "AI-Resource-Group", "default"); err != nil {
		t.Error(err)
	}
}

func TestModelRouter_UnknownModel(t *testing.T) {
	server := mock.NewMockServer()
	defer server.Close()
	r, _ := newTestRouter(t, server, testModels())

	_, err := r.Resolve(context.Background(), "nope")
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
	var notFound *providers.ModelNotFoundError
	if !errors.As(err, &notFound) || notFound.Model != "nope" {
		t.Errorf("expected ModelNotFoundError in chain, got %v", err)
	}
}

func TestModelRouter_ConcurrentDiscoveryIsShared(t *testing.T) {
	server := mock.NewMockServer()
	defer server.Close()
	server.SetResponse("/v2/lm/deployments", mock.MockResponse{
		Delay: 100 * time.Millisecond,
		Body:  `{"resources":[{"id":"d222","status":"RUNNING","details":{"resources":{"backend_details":{"model":{"name":"gpt-4o"}}}}}]}`,
	})

	r, _ := newTestRouter(t, server, testModels())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.DeploymentFor(context.Background(), "gpt-4o"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := server.RequestCount("/v2/lm/deployments"); got != 1 {
		t.Errorf("expected discovery to be shared, got %d requests", got)
	}
}

func TestModelRouter_MissingDeploymentIsCached(t *testing.T) {
	server := mock.NewMockServer()
	defer server.Close()
	server.SetDeployments(map[string]string{"gpt-4o": "d222"})

	r, _ := newTestRouter(t, server, testModels())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m, err := r.Resolve(ctx, "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.DeploymentID != "" {
			t.Fatalf("expected no deployment, got %q", m.DeploymentID)
		}
	}
	if _, err := r.DeploymentFor(ctx, "missing"); !errors.Is(err, ErrNoDeployment) {
		t.Errorf("expected ErrNoDeployment, got %v", err)
	}
	if got := server.RequestCount("/v2/lm/deployments"); got != 1 {
		t.Errorf("expected 1 discovery request, got %d", got)
	}

	// a model table update drops the negative entry
	r.UpdateModels(testModels())
	if _, err := r.Resolve(ctx, "missing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := server.RequestCount("/v2/lm/deployments"); got != 2 {
		t.Errorf("expected rediscovery after update, got %d requests", got)
	}
}

func TestModelRouter_CancelledCallerDoesNotFailOthers(t *testing.T) {
	server := mock.NewMockServer()
	defer server.Close()
	server.SetResponse("/v2/lm/deployments", mock.MockResponse{
		Delay: 200 * time.Millisecond,
		Body:  `{"resources":[{"id":"d222","status":"RUNNING","details":{"resources":{"backend_details":{"model":{"name":"gpt-4o"}}}}}]}`,
	})

	r, _ := newTestRouter(t, server, testModels())

	var (
		wg           sync.WaitGroup
		patientM     providers.ModelConfig
		patientErr   error
		impatientErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, impatientErr = r.Resolve(ctx, "gpt-4o")
	}()
	go func() {
		defer wg.Done()
		// join the discovery the impatient caller started
		time.Sleep(10 * time.Millisecond)
		patientM, patientErr = r.Resolve(context.Background(), "gpt-4o")
	}()
	wg.Wait()

	if !providers.IsCancellation(impatientErr) {
		t.Errorf("expected cancellation for the caller with a deadline, got %v", impatientErr)
	}
	if patientErr != nil {
		t.Fatalf("unexpected error for the patient caller: %v", patientErr)
	}
	if patientM.DeploymentID != "d222" {
		t.Errorf("expected deployment d222, got %q", patientM.DeploymentID)
	}
	if got := server.RequestCount("/v2/lm/deployments"); got != 1 {
		t.Errorf("expected one shared discovery, got %d requests", got)
	}
}

func TestModelRouter_DiscoveryTimeout(t *testing.T) {
	server := mock.NewMockServer()
	defer server.Close()
	server.SetResponse("/v2/lm/deployments", mock.MockResponse{Delay: 300 * time.Millisecond, Body: `{"resources":[]}`})

	tokens := &mock.StaticTokens{Token: "tok"}
	client := providers.NewHTTPClient(providers.ClientConfig{Name: "backend", Timeout: 5 * time.Second})
	r := NewModelRouter(Config{BaseURL: server.URL(), CacheTTL: time.Minute, Timeout: 50 * time.Millisecond}, testModels(), tokens, client)
	defer r.Close()

	m, err := r.Resolve(context.Background(), "gpt-4o")
	if err != nil {
		t.Fatalf("expected the timeout to be absorbed, got %v", err)
	}
	if m.DeploymentID != "" {
		t.Errorf("expected no deployment, got %q", m.DeploymentID)
	}

	_, err = r.DeploymentFor(context.Background(), "gpt-4o")
	var transportErr *providers.UpstreamTransportError
	if !errors.Is(err, ErrNoDeployment) || !errors.As(err, &transportErr) {
		t.Errorf("expected NoDeploymentError wrapping a transport error, got %v", err)
	}
	if providers.IsCancellation(err) {
		t.Errorf("a discovery timeout must not read as caller cancellation: %v", err)
	}
}

func TestModelRouter_ValidateModel(t *testing.T) {
	server := mock.NewMockServer()
	defer server.Close()
	server.SetDeployments(map[string]string{"gpt-4o": "d222"})

	models := testModels()
	models["bad-format"] = providers.ModelConfig{Provider: "openai", APIType: providers.APITypeDirect, RequestFormat: "xml"}
	r, _ := newTestRouter(t, server, models)
	ctx := context.Background()

	tests := []struct {
		model   string
		valid   bool
		wantErr error
	}{
		{model: "gpt-4o", valid: true},
		{model: "gemini", valid: true},
		{model: "missing", wantErr: ErrNoDeployment},
		{model: "unknown", wantErr: ErrUnknownModel},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			v := r.ValidateModel(ctx, tt.model)
			if v.Valid != tt.valid {
				t.Errorf("expected valid=%v, got %v (%v)", tt.valid, v.Valid, v.Err)
			}
			if tt.wantErr != nil && !errors.Is(v.Err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, v.Err)
			}
		})
	}

	v := r.ValidateModel(ctx, "bad-format")
	var cfgErr *providers.ConfigurationError
	if v.Valid || !errors.As(v.Err, &cfgErr) {
		t.Errorf("expected configuration error for bad format, got %+v", v)
	}
}

func TestModelRouter_DiscoveryFailureLeavesBackendUnavailable(t *testing.T) {
	server := mock.NewMockServer()
	defer server.Close()
	server.SetResponse("/v2/lm/deployments", mock.MockErrorResponse(403, "forbidden"))

	r, _ := newTestRouter(t, server, testModels())

	m, err := r.Resolve(context.Background(), "gpt-4o")
	if err != nil {
		t.Fatalf("expected discovery failure to be absorbed, got %v", err)
	}
	if m.DeploymentID != "" {
		t.Errorf("expected no deployment, got %q", m.DeploymentID)
	}

	_, err = r.DeploymentFor(context.Background(), "gpt-4o")
	var authErr *providers.AuthError
	if !errors.Is(err, ErrNoDeployment) || !errors.As(err, &authErr) {
		t.Errorf("expected NoDeploymentError wrapping AuthError, got %v", err)
	}
}

func TestModelRouter_UpdateModels(t *testing.T) {
	server := mock.NewMockServer()
	defer server.Close()
	r, _ := newTestRouter(t, server, testModels())

	r.UpdateModels(map[string]providers.ModelConfig{
		"only": {Provider: "google", APIType: providers.APITypeDirect},
	})
	if got := r.Models(); len(got) != 1 || got[0] != "only" {
		t.Errorf("expected model table to be replaced, got %v", got)
	}
	if _, ok := r.Lookup("claude"); ok {
		t.Error("expected old models to be gone")
	}
}

func TestModelsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Vendors: map[string]config.VendorConfig{
			"anthropic": {APIVersion: "2023-06-01"},
		},
		Models: map[string]config.ModelConfig{
			"claude": {Provider: "anthropic", APIType: "direct", VendorModel: "claude-3-5-sonnet"},
		},
	}
	models := ModelsFromConfig(cfg)
	m := models["claude"]
	if m.Name != "claude" || m.APIVersion != "2023-06-01" || m.ModelID() != "claude-3-5-sonnet" {
		t.Errorf("unexpected resolved model: %+v", m)
	}
}

func TestParseDeployments(t *testing.T) {
	body := []byte(`{"count":3,"resources":[
		{"id":"d1","status":"RUNNING","details":{"resources":{"backend_details":{"model":{"name":"gpt-4o"}}}}},
		{"id":"d2","status":"STOPPED","details":{"resources":{"backendDetails":{"model":{"name":"gemini"}}}}},
		{"id":"","details":{"resources":{"backend_details":{"model":{"name":"x"}}}}}
	]}`)

	got := ParseDeployments(body)
	if len(got) != 2 {
		t.Fatalf("expected 2 deployments, got %d", len(got))
	}
	if !got[0].Running() || got[0].Model != "gpt-4o" {
		t.Errorf("unexpected first deployment: %+v", got[0])
	}
	if got[1].Running() || got[1].Model != "gemini" {
		t.Errorf("unexpected second deployment: %+v", got[1])
	}
	if ParseDeployments([]byte("not json")) != nil {
		t.Error("expected nil for invalid body")
	}
}

func TestDeploymentCache_Expiry(t *testing.T) {
	c := NewDeploymentCache(time.Minute)
	defer c.Close()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.SetAll(map[string]string{"gpt-4o": "d1"})
	if id, ok := c.Get("gpt-4o"); !ok || id != "d1" {
		t.Fatalf("expected cached deployment, got %q %v", id, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("gpt-4o"); ok {
		t.Error("expected entry to expire")
	}
	c.removeExpired()
	if c.Size() != 0 {
		t.Errorf("expected expired entry to be swept, got %d", c.Size())
	}
}
