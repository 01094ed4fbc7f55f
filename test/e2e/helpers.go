//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mnemo-ai/mnemo/internal/agent"
	"github.com/mnemo-ai/mnemo/internal/api/handlers"
	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/openai"
	"github.com/mnemo-ai/mnemo/internal/repository"
	"github.com/mnemo-ai/mnemo/internal/server"
	"github.com/mnemo-ai/mnemo/internal/service"
	"github.com/mnemo-ai/mnemo/internal/storage"
	"github.com/mnemo-ai/mnemo/internal/testutil"
	"github.com/mnemo-ai/mnemo/internal/tools"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, s3Client, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

// Put performs a PUT request
func (e *E2ETestEnv) Put(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("PUT", path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// UploadDocument posts a multipart document upload
func (e *E2ETestEnv) UploadDocument(filename string, content []byte, tags string) (*APIResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if tags != "" {
		if err := writer.WriteField("tags", tags); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+"/documents", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}
	return &apiResp, nil
}

// DownloadFile downloads a file from the presigned URL
func (e *E2ETestEnv) DownloadFile(downloadURL string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(downloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// startServer starts the HTTP server with all handlers. Search and the
// decision model are replaced by deterministic in-process stand-ins so the
// suite runs without an embedding provider.
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, port int) (string, func()) {
	itemRepo := repository.NewItemRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	embRepo := repository.NewEmbeddingRepository(pool)
	jobRepo := repository.NewEmbeddingJobRepository(pool)
	searchLogRepo := repository.NewSearchLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	knowledgeSvc := service.NewKnowledgeService(itemRepo, txRunner)
	memorySvc := service.NewMemoryService(convRepo, nil, 20)
	ingestSvc := service.NewIngestService(knowledgeSvc, service.PlainTextParser{}, s3Client)
	statsSvc := service.NewStatsService(itemRepo, embRepo, jobRepo, searchLogRepo)

	searchSvc := &substringSearchService{knowledge: knowledgeSvc}

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, tools.BuiltinDeps{
		Knowledge: knowledgeSvc,
		Search:    searchSvc,
		Archive:   s3Client,
	}); err != nil {
		t.Fatalf("failed to register tools: %v", err)
	}

	dispatcher := tools.NewDispatcher(registry, convRepo, &service.DefaultUUIDGenerator{}, 10*time.Second)
	agentSvc := agent.NewOrchestrator(&scriptedDecider{}, memorySvc, dispatcher, registry, 5)

	cfg := server.RouterConfig{
		ItemHandler:     handlers.NewItemHandler(knowledgeSvc),
		SearchHandler:   handlers.NewSearchHandler(searchSvc),
		ChatHandler:     handlers.NewChatHandler(agentSvc),
		MemoryHandler:   handlers.NewMemoryHandler(memorySvc),
		ToolsHandler:    handlers.NewToolsHandler(dispatcher, registry),
		DocumentHandler: handlers.NewDocumentHandler(ingestSvc, knowledgeSvc, s3Client),
		StatsHandler:    handlers.NewStatsHandler(statsSvc),
	}

	router := server.NewRouter(cfg)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// substringSearchService ranks by naive text match so search can be
// exercised end to end without an embedding provider.
type substringSearchService struct {
	knowledge *service.KnowledgeService
}

func (s *substringSearchService) Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrInvalidQuery
	}

	out, err := s.knowledge.ListItems(ctx, service.ListItemsInput{Limit: 100})
	if err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	results := make([]*service.SearchResult, 0)
	for _, item := range out.Items {
		if len(input.Kinds) > 0 && !containsKind(input.Kinds, item.Kind) {
			continue
		}
		if containsIgnoreCase(item.Title, query) || containsIgnoreCase(item.Body, query) {
			results = append(results, &service.SearchResult{
				Item:       item,
				Score:      0.9,
				Similarity: 0.9,
				Embedded:   false,
			})
		}
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

func containsKind(kinds []domain.ItemKind, kind domain.ItemKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// scriptedDecider is a deterministic stand-in for the chat model. It drives
// the orchestrator from the latest user message:
//
//	"remember: <text>"  -> create_note tool call, then a closing answer
//	"loop"              -> an unknown tool call every hop, to exhaust the budget
//	anything else       -> an immediate echo answer
type scriptedDecider struct{}

func (d *scriptedDecider) Decide(ctx context.Context, messages []openai.Message, specs []openai.ToolSpec) (*openai.Decision, error) {
	if len(messages) > 0 {
		last := messages[len(messages)-1]
		if last.Role == "system" && strings.Contains(last.Content, "Tool budget exhausted") {
			return &openai.Decision{Answer: "I ran out of tool budget before finishing."}, nil
		}
	}

	var lastUser string
	toolResults := 0
	for _, m := range messages {
		if m.Role == "user" {
			lastUser = m.Content
			toolResults = 0
		}
		if m.Role == "tool" {
			toolResults++
		}
	}

	switch {
	case strings.HasPrefix(lastUser, "remember:"):
		if toolResults > 0 {
			return &openai.Decision{Answer: "Saved your note."}, nil
		}
		body := strings.TrimSpace(strings.TrimPrefix(lastUser, "remember:"))
		args, _ := json.Marshal(map[string]string{"title": "Reminder", "body": body})
		return &openai.Decision{ToolCall: &openai.ToolCallRequest{
			ID:        "call_note",
			Name:      "create_note",
			Arguments: args,
		}}, nil
	case lastUser == "loop":
		return &openai.Decision{ToolCall: &openai.ToolCallRequest{
			ID:        fmt.Sprintf("call_loop_%d", toolResults),
			Name:      "no_such_tool",
			Arguments: json.RawMessage(`{}`),
		}}, nil
	default:
		return &openai.Decision{Answer: "Echo: " + lastUser}, nil
	}
}
