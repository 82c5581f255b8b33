package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"spectra/internal/backend"
	"spectra/internal/chat"
	"spectra/internal/config"
	"spectra/internal/observability"
	"spectra/internal/persona"
	"spectra/internal/sessionstore"
	"spectra/internal/speech"
	"spectra/internal/transcript"
)

func newTestServer(t *testing.T, be backend.Backend) (*httptest.Server, *http.Client, config.Config) {
	t.Helper()

	cfg := config.Config{
		AIProvider:             config.ProviderHosted,
		AvatarName:             "Spectra",
		AvatarFullName:         "Spectra Communicator",
		AssetDir:               t.TempDir(),
		TypewriterDelay:        50 * time.Millisecond,
		MouthAnimationInterval: 150 * time.Millisecond,
		BeepFrequencyHz:        800,
		BeepDuration:           50 * time.Millisecond,
		BeepVolume:             0.05,
		BeepVolumeEnd:          0.01,
	}

	sessions := sessionstore.NewInMemoryStore()
	assets := speech.NewManager(speech.Config{
		ToolPath: "definitely-not-a-real-synth-tool",
		AssetDir: cfg.AssetDir,
		Timeout:  5 * time.Second,
		MaxAge:   time.Hour,
	}, sessions, zerolog.Nop())

	personas := persona.NewStore(t.TempDir(), persona.Record{
		AvatarName:        "Spectra",
		AvatarFullName:    "Spectra Communicator",
		SystemInstruction: "You are Spectra.",
		AvatarImageIdle:   "idle.png",
		AvatarImageTalk:   "talk.png",
	}, zerolog.Nop())
	if err := personas.EnsureDefault("Spectra"); err != nil {
		t.Fatalf("EnsureDefault() error = %v", err)
	}

	metrics := observability.NewMetrics(fmt.Sprintf("test_httpapi_%d", time.Now().UnixNano()))
	orch := chat.NewOrchestrator(personas, sessions, be, assets, transcript.NewInMemoryStore(), metrics, zerolog.Nop(), "Spectra")

	srv := New(cfg, orch, personas, metrics, zerolog.Nop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error = %v", err)
	}
	return ts, &http.Client{Jar: jar}, cfg
}

func postChat(t *testing.T, client *http.Client, url, message string, image []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("message", message); err != nil {
		t.Fatalf("WriteField() error = %v", err)
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "shot.png")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := fw.Write(image); err != nil {
			t.Fatalf("writing image part: %v", err)
		}
	}
	mw.Close()

	res, err := client.Post(url+"/api/chat", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /api/chat error = %v", err)
	}
	return res
}

func TestIndexRendersPersona(t *testing.T) {
	ts, client, _ := newTestServer(t, backend.NewMockBackend("hi"))

	res, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET / status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(body), "Spectra Communicator") {
		t.Fatalf("index page missing avatar name")
	}

	var found bool
	for _, c := range res.Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("first contact did not issue a %s cookie", sessionCookieName)
	}
}

func TestChatTurn(t *testing.T) {
	ts, client, _ := newTestServer(t, backend.NewMockBackend("hello there"))

	res := postChat(t, client, ts.URL, "hello", nil)
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload chatResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Response != "hello there" {
		t.Fatalf("response = %q", payload.Response)
	}
	if payload.AudioURL != nil {
		t.Fatalf("audio_url = %v, want null without a synthesis tool", *payload.AudioURL)
	}

	histRes, err := client.Get(ts.URL + "/api/history")
	if err != nil {
		t.Fatalf("GET /api/history error = %v", err)
	}
	defer histRes.Body.Close()
	var hist struct {
		History []map[string]any `json:"history"`
	}
	if err := json.NewDecoder(histRes.Body).Decode(&hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.History) != 3 {
		t.Fatalf("history length = %d, want system seed + turn pair", len(hist.History))
	}
}

func TestChatMissingMessage(t *testing.T) {
	ts, client, _ := newTestServer(t, backend.NewMockBackend("unused"))

	res := postChat(t, client, ts.URL, "   ", nil)
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("chat status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestChatBackendUnavailable(t *testing.T) {
	be := backend.NewMockBackend("unused")
	be.Err = backend.ErrUnavailable
	ts, client, _ := newTestServer(t, be)

	res := postChat(t, client, ts.URL, "hello", nil)
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("chat status = %d, want %d", res.StatusCode, http.StatusBadGateway)
	}
}

func TestChatImagePlaceholder(t *testing.T) {
	be := backend.NewMockBackend("unused")
	be.Images = false
	ts, client, _ := newTestServer(t, be)

	res := postChat(t, client, ts.URL, "what is in this picture", []byte("not really a png"))
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload chatResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Response != backend.UnsupportedImageReply {
		t.Fatalf("response = %q, want the fixed placeholder", payload.Response)
	}
	if be.CallCount() != 0 {
		t.Fatalf("backend contacted %d times, want 0", be.CallCount())
	}
}

func TestPersonaEndpoints(t *testing.T) {
	ts, client, _ := newTestServer(t, backend.NewMockBackend("hi"))

	listRes, err := client.Get(ts.URL + "/api/personas")
	if err != nil {
		t.Fatalf("GET /api/personas error = %v", err)
	}
	defer listRes.Body.Close()
	var list struct {
		Personas []string `json:"personas"`
	}
	if err := json.NewDecoder(listRes.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Personas) != 1 || list.Personas[0] != "Spectra" {
		t.Fatalf("personas = %v", list.Personas)
	}

	curRes, err := client.Get(ts.URL + "/api/current_persona")
	if err != nil {
		t.Fatalf("GET /api/current_persona error = %v", err)
	}
	defer curRes.Body.Close()
	var current struct {
		Name   string         `json:"name"`
		Config persona.Record `json:"config"`
	}
	if err := json.NewDecoder(curRes.Body).Decode(&current); err != nil {
		t.Fatalf("decode current persona: %v", err)
	}
	if current.Name != "Spectra" || current.Config.AvatarName != "Spectra" {
		t.Fatalf("current persona = %+v", current)
	}

	body, _ := json.Marshal(map[string]string{"name": "nobody"})
	switchRes, err := client.Post(ts.URL+"/api/current_persona", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/current_persona error = %v", err)
	}
	defer switchRes.Body.Close()
	if switchRes.StatusCode != http.StatusNotFound {
		t.Fatalf("switch to unknown persona status = %d, want %d", switchRes.StatusCode, http.StatusNotFound)
	}
}

func TestPersonaSettingsUpdate(t *testing.T) {
	ts, client, _ := newTestServer(t, backend.NewMockBackend("hi"))

	payload := map[string]any{
		"name": "Spectra",
		"settings": map[string]any{
			"vsayOptions": map[string]float64{"speed": 1.5},
		},
	}
	body, _ := json.Marshal(payload)
	res, err := client.Post(ts.URL+"/api/persona_settings", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/persona_settings error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("settings status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var updated struct {
		Config persona.Record `json:"config"`
	}
	if err := json.NewDecoder(res.Body).Decode(&updated); err != nil {
		t.Fatalf("decode updated persona: %v", err)
	}
	if got := updated.Config.VsayOptions["speed"]; got != 1.5 {
		t.Fatalf("speed = %v, want 1.5", got)
	}
	if got := updated.Config.VsayOptions["pitch"]; got != 1.0 {
		t.Fatalf("pitch = %v, untouched options must survive the update", got)
	}

	missing, err := client.Post(ts.URL+"/api/persona_settings", "application/json",
		bytes.NewReader([]byte(`{"name":"nobody","settings":{"avatarName":"X"}}`)))
	if err != nil {
		t.Fatalf("POST /api/persona_settings error = %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown persona status = %d, want %d", missing.StatusCode, http.StatusNotFound)
	}
}

func TestResetEndpoint(t *testing.T) {
	ts, client, _ := newTestServer(t, backend.NewMockBackend("hi"))

	res := postChat(t, client, ts.URL, "hello", nil)
	res.Body.Close()

	resetRes, err := client.Post(ts.URL+"/api/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/reset error = %v", err)
	}
	defer resetRes.Body.Close()
	if resetRes.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d, want %d", resetRes.StatusCode, http.StatusOK)
	}

	histRes, err := client.Get(ts.URL + "/api/history")
	if err != nil {
		t.Fatalf("GET /api/history error = %v", err)
	}
	defer histRes.Body.Close()
	var hist struct {
		History []map[string]any `json:"history"`
	}
	if err := json.NewDecoder(histRes.Body).Decode(&hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.History) != 0 {
		t.Fatalf("history length after reset = %d, want 0", len(hist.History))
	}
}

func TestAudioAssetServing(t *testing.T) {
	ts, client, cfg := newTestServer(t, backend.NewMockBackend("hi"))

	if err := os.WriteFile(filepath.Join(cfg.AssetDir, "clip.wav"), []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}

	res, err := client.Get(ts.URL + "/static/audio/clip.wav")
	if err != nil {
		t.Fatalf("GET asset error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("asset status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	missing, err := client.Get(ts.URL + "/static/audio/nope.wav")
	if err != nil {
		t.Fatalf("GET missing asset error = %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing asset status = %d, want %d", missing.StatusCode, http.StatusNotFound)
	}
}

func TestEventsFeedAnnouncesTurns(t *testing.T) {
	ts, client, _ := newTestServer(t, backend.NewMockBackend("hello there"))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing events feed: %v", err)
	}
	defer conn.Close()

	res := postChat(t, client, ts.URL, "hello", nil)
	res.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event turnEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("reading turn event: %v", err)
	}
	if event.Type != "turn" || event.Response != "hello there" {
		t.Fatalf("event = %+v", event)
	}
}

func TestHealthz(t *testing.T) {
	ts, client, _ := newTestServer(t, backend.NewMockBackend("hi"))

	res, err := client.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}
