package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/gopherchat/gopherchat/internal/ai"
	"github.com/gopherchat/gopherchat/internal/chat"
	"github.com/gopherchat/gopherchat/internal/conversation"
	"github.com/gopherchat/gopherchat/internal/document"
	"github.com/gopherchat/gopherchat/internal/vectorstore"
)

type fakeProvider struct{}

func (fakeProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	_ = ctx
	_ = messages
	return `{"reasoning_steps": ["noted"], "response": "hello from the model"}`, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	_ = ctx
	vec := make([]float32, 4)
	for i, b := range []byte(text) {
		vec[i%4] += float32(b)
	}
	return vec, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&conversation.Conversation{},
		&conversation.Message{},
		&vectorstore.Record{},
		&vectorstore.DocChunk{},
		&document.Document{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	repo := conversation.NewRepo(db)
	vectors := vectorstore.NewStore(db, fakeEmbedder{})
	convSvc := conversation.NewService(repo, vectors, "router-test-secret", "", nil)
	docSvc := document.NewService(document.NewRepo(db), vectors, nil)

	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		_ = model
		return fakeProvider{}, nil
	})
	chatSvc := chat.NewService(repo, vectors, vectors, reg, nil, nil, chat.Options{Provider: "fake"})

	return NewRouter(chatSvc, convSvc, docSvc, nil, RouterOptions{})
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func detailOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not json: %v (%s)", err, w.Body.String())
	}
	return body.Detail
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestChatFlow(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/chat", map[string]string{"message": "Hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var result struct {
		ConversationID   string   `json:"conversation_id"`
		Response         string   `json:"response"`
		ReasoningSteps   []string `json:"reasoning_steps"`
		RetrievedContext []string `json:"retrieved_context"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.ConversationID == "" || result.Response == "" {
		t.Fatalf("incomplete result: %+v", result)
	}
	if result.RetrievedContext == nil {
		t.Fatal("retrieved_context must be present, even when empty")
	}

	// second turn in the same conversation sees the first
	w = do(t, r, http.MethodPost, "/api/chat", map[string]string{
		"message":         "What did I just say?",
		"conversation_id": result.ConversationID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, s := range result.RetrievedContext {
		if strings.Contains(s, "Hello") {
			found = true
		}
	}
	if !found {
		t.Fatalf("second turn did not retrieve the first: %v", result.RetrievedContext)
	}

	// messages endpoint shows both turns
	w = do(t, r, http.MethodGet, "/api/conversations/"+result.ConversationID+"/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var msgs struct {
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs.Messages))
	}
}

func TestChatValidation(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/chat", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	if detailOf(t, w) == "" {
		t.Fatal("expected a detail message")
	}
}

func TestConversationLifecycle(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/conversations", map[string]string{"title": "Lifecycle"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", w.Code, w.Body.String())
	}
	var conv struct {
		ID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = do(t, r, http.MethodPatch, "/api/conversations/"+conv.ID, map[string]string{"title": "Renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch status %d: %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/api/conversations/"+conv.ID, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Renamed") {
		t.Fatalf("get after rename: %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodPatch, "/api/conversations/"+conv.ID, map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty patch status %d", w.Code)
	}

	w = do(t, r, http.MethodDelete, "/api/conversations/"+conv.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status %d", w.Code)
	}
	w = do(t, r, http.MethodGet, "/api/conversations/"+conv.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status %d", w.Code)
	}
	w = do(t, r, http.MethodDelete, "/api/conversations/"+conv.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status %d", w.Code)
	}
}

func TestExportEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/conversations", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status %d", w.Code)
	}
	var conv struct {
		ID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = do(t, r, http.MethodGet, "/api/conversations/"+conv.ID+"/export?format=json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status %d: %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("missing attachment disposition: %q", cd)
	}

	w = do(t, r, http.MethodGet, "/api/conversations/"+conv.ID+"/export?format=docx", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unsupported format status %d", w.Code)
	}

	w = do(t, r, http.MethodGet, "/api/conversations/"+conv.ID+"/export", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing format status %d", w.Code)
	}
}

func TestShareEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/conversations", map[string]string{"title": "To share"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status %d", w.Code)
	}
	var conv struct {
		ID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = do(t, r, http.MethodPost, "/api/conversations/"+conv.ID+"/share", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("share status %d: %s", w.Code, w.Body.String())
	}
	var link struct {
		Token string `json:"share_token"`
		URL   string `json:"share_url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &link); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if link.Token == "" || !strings.Contains(link.URL, "/api/shared/") {
		t.Fatalf("incomplete link: %+v", link)
	}

	w = do(t, r, http.MethodGet, "/api/shared/"+link.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("shared view status %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "To share") {
		t.Fatalf("shared view missing title: %s", w.Body.String())
	}

	// born-expired link is refused with 410
	w = do(t, r, http.MethodPost, "/api/conversations/"+conv.ID+"/share", map[string]int{"expires_in_days": 0})
	if w.Code != http.StatusOK {
		t.Fatalf("share status %d: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &link); err != nil {
		t.Fatalf("decode: %v", err)
	}
	w = do(t, r, http.MethodGet, "/api/shared/"+link.Token, nil)
	if w.Code != http.StatusGone {
		t.Fatalf("expired link status %d: %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/api/shared/garbage-token", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("garbage token status %d", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	r := newTestRouter(t)

	for _, title := range []string{"Alpha release notes", "Beta planning", "Alpha retro"} {
		w := do(t, r, http.MethodPost, "/api/conversations", map[string]string{"title": title})
		if w.Code != http.StatusCreated {
			t.Fatalf("create status %d", w.Code)
		}
	}

	w := do(t, r, http.MethodGet, "/api/conversations/search?query=alpha", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Total != 2 {
		t.Fatalf("expected 2 hits, got %d", out.Total)
	}
}

func uploadFile(t *testing.T, r *gin.Engine, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDocumentLifecycle(t *testing.T) {
	r := newTestRouter(t)

	w := uploadFile(t, r, "fleet.csv", "name,region\nweb-1,eu\nweb-2,us\n")
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status %d: %s", w.Code, w.Body.String())
	}
	var up struct {
		DocumentID    string `json:"document_id"`
		Filename      string `json:"filename"`
		ChunksCreated int    `json:"chunks_created"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &up); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if up.DocumentID == "" || up.Filename != "fleet.csv" || up.ChunksCreated == 0 {
		t.Fatalf("incomplete upload result: %+v", up)
	}

	w = do(t, r, http.MethodGet, "/api/documents", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status %d: %s", w.Code, w.Body.String())
	}
	var list struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 1 {
		t.Fatalf("expected 1 document, got %d", list.Total)
	}

	w = do(t, r, http.MethodPost, "/api/documents/retrieve", map[string]any{"query": "web-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("retrieve status %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		Chunks []struct {
			Filename string `json:"filename"`
		} `json:"chunks"`
		Method string `json:"retrieval_method"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Chunks) == 0 || res.Chunks[0].Filename != "fleet.csv" {
		t.Fatalf("unexpected retrieval result: %s", w.Body.String())
	}
	if res.Method == "" {
		t.Fatal("retrieval_method missing from response")
	}

	w = do(t, r, http.MethodDelete, "/api/documents/"+up.DocumentID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status %d: %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodDelete, "/api/documents/"+up.DocumentID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status %d", w.Code)
	}
}

func TestDocumentUploadValidation(t *testing.T) {
	r := newTestRouter(t)

	w := uploadFile(t, r, "notes.txt", "plain text is not accepted")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unsupported extension status %d: %s", w.Code, w.Body.String())
	}
	if detailOf(t, w) == "" {
		t.Fatal("expected a detail message")
	}

	w = do(t, r, http.MethodPost, "/api/documents/upload", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing file status %d", w.Code)
	}

	w = do(t, r, http.MethodPost, "/api/documents/retrieve", map[string]string{"query": "  "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank query status %d", w.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d", w.Code)
	}
	if detailOf(t, w) == "" {
		t.Fatal("expected a detail body on 404")
	}
}
