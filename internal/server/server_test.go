package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/narrio/internal/api"
	"github.com/jackzampolin/narrio/internal/config"
	"github.com/jackzampolin/narrio/internal/jobs"
	"github.com/jackzampolin/narrio/internal/providers"
	"github.com/jackzampolin/narrio/internal/testutil"
)

type testServer struct {
	cfg    testutil.ServerConfig
	srv    *Server
	client *api.Client
	mock   *providers.MockTTSProvider
	stop   func()
}

// newTestServer starts a server on a free port with the mock TTS
// provider as the default, and waits until it reports healthy.
func newTestServer(t *testing.T, configYAML string) *testServer {
	t.Helper()

	cfg := testutil.NewServerConfig(t)
	if err := os.WriteFile(cfg.ConfigFile, []byte(configYAML), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	mgr, err := config.NewManager(cfg.ConfigFile)
	if err != nil {
		t.Fatalf("failed to create config manager: %v", err)
	}

	srv, err := New(Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		HomeDir:       cfg.HomeDir,
		ConfigManager: mgr,
		Logger:        cfg.Logger,
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	mock := providers.NewMockTTSProvider()
	srv.Registry().RegisterTTS(providers.MockTTSName, mock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Start(ctx)
	}()

	if err := testutil.WaitForServer(cfg.URL(), 10*time.Second); err != nil {
		cancel()
		t.Fatalf("server did not become ready: %v", err)
	}

	ts := &testServer{
		cfg:    cfg,
		srv:    srv,
		client: api.NewClient(cfg.URL()),
		mock:   mock,
		stop: func() {
			cancel()
			if err := testutil.WaitForShutdown(done, 10*time.Second); err != nil {
				t.Errorf("shutdown: %v", err)
			}
		},
	}
	t.Cleanup(ts.stop)
	return ts
}

const mockConfig = `
defaults:
  tts_provider: mock
  voice: test
limits:
  free_page_limit: 30
`

const mockConfigWithAuth = mockConfig + `
auth:
  enabled: true
  jwks_url: http://127.0.0.1:1/jwks
`

const epubContainerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const epubPackageOPF = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Test Book</dc:title></metadata>
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="ch2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

// writeEPUB creates a small two chapter EPUB document.
func writeEPUB(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "novel.epub")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	body := strings.TrimSpace(strings.Repeat("steady narrative prose ", 60))
	doc := func(title string) string {
		return `<?xml version="1.0"?><html xmlns="http://www.w3.org/1999/xhtml"><head><title>x</title></head><body><h1>` +
			title + `</h1><p>` + body + `</p></body></html>`
	}

	zw := zip.NewWriter(f)
	entries := map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": epubContainerXML,
		"OEBPS/content.opf":      epubPackageOPF,
		"OEBPS/ch1.xhtml":        doc("Chapter 1"),
		"OEBPS/ch2.xhtml":        doc("Chapter 2"),
	}
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// writePDF writes a minimal valid PDF with the given number of empty
// pages, enough for page counting.
func writePDF(t *testing.T, dir string, pages int) string {
	t.Helper()

	var body bytes.Buffer
	offsets := make([]int, 0, pages+3)
	addObj := func(content string) {
		offsets = append(offsets, body.Len())
		body.WriteString(content)
	}

	body.WriteString("%PDF-1.4\n")

	addObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	addObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), pages))

	for i := 0; i < pages; i++ {
		addObj(fmt.Sprintf(
			"%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>\nendobj\n",
			i+3))
	}

	xrefOffset := body.Len()
	fmt.Fprintf(&body, "xref\n0 %d\n", len(offsets)+1)
	body.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&body, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&body, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefOffset)

	path := filepath.Join(dir, fmt.Sprintf("doc-%d.pdf", pages))
	if err := os.WriteFile(path, body.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type convertResp struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type progressEvent struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	Error    string `json:"error"`
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, mockConfig)

	var resp struct {
		Status    string   `json:"status"`
		Providers []string `json:"providers"`
	}
	if err := ts.client.Get(context.Background(), "/api/health", &resp); err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	found := false
	for _, p := range resp.Providers {
		if p == providers.MockTTSName {
			found = true
		}
	}
	if !found {
		t.Errorf("mock provider not listed: %v", resp.Providers)
	}
}

func TestServer_ClientConfig(t *testing.T) {
	ts := newTestServer(t, mockConfig)

	var resp struct {
		AuthConfigured  bool   `json:"authConfigured"`
		FreeTierLimit   int    `json:"freeTierLimit"`
		DefaultProvider string `json:"default_provider"`
	}
	if err := ts.client.Get(context.Background(), "/api/config", &resp); err != nil {
		t.Fatalf("config: %v", err)
	}
	if resp.AuthConfigured {
		t.Error("authConfigured = true, want false")
	}
	if resp.FreeTierLimit != 30 {
		t.Errorf("freeTierLimit = %d, want 30", resp.FreeTierLimit)
	}
	if resp.DefaultProvider != providers.MockTTSName {
		t.Errorf("default_provider = %q, want mock", resp.DefaultProvider)
	}
}

func TestServer_ConvertFlow(t *testing.T) {
	ts := newTestServer(t, mockConfig)
	ctx := context.Background()

	path := writeEPUB(t, t.TempDir())
	var resp convertResp
	if err := ts.client.PostFile(ctx, "/api/convert", path, nil, &resp); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("convert returned no job_id")
	}
	if resp.Status != string(jobs.StatusQueued) {
		t.Errorf("status = %q, want queued", resp.Status)
	}

	// Follow progress to the terminal event.
	var last progressEvent
	streamCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err := ts.client.Stream(streamCtx, "/api/progress/"+resp.JobID, func(data []byte) error {
		var ev progressEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		if ev.Error != "" && ev.Status == "" {
			return fmt.Errorf("stream error: %s", ev.Error)
		}
		if ev.Progress < last.Progress {
			t.Errorf("progress went backwards: %d -> %d", last.Progress, ev.Progress)
		}
		last = ev
		return nil
	})
	if err != nil {
		t.Fatalf("progress stream: %v", err)
	}
	if last.Status != string(jobs.StatusCompleted) {
		t.Fatalf("final status = %q (%s), want completed", last.Status, last.Error)
	}
	if last.Progress != 100 {
		t.Errorf("final progress = %d, want 100", last.Progress)
	}

	// Download the result.
	var audio bytes.Buffer
	name, err := ts.client.GetFile(ctx, "/api/download/"+resp.JobID, &audio)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if name != "novel.mp3" {
		t.Errorf("download name = %q, want novel.mp3", name)
	}
	if !bytes.Contains(audio.Bytes(), []byte("mock-audio")) {
		t.Error("downloaded audio missing synthesized content")
	}

	// Cancelling a finished job is a harmless no-op.
	var cancelResp struct {
		Cancelled bool   `json:"cancelled"`
		Status    string `json:"status"`
	}
	if err := ts.client.Post(ctx, "/api/cancel/"+resp.JobID, nil, &cancelResp); err != nil {
		t.Fatalf("cancel completed job: %v", err)
	}
	if cancelResp.Cancelled || cancelResp.Status != string(jobs.StatusCompleted) {
		t.Errorf("cancel after completion = %+v, want cancelled=false, status=completed", cancelResp)
	}
}

func TestServer_CancelUnknownJob(t *testing.T) {
	ts := newTestServer(t, mockConfig)

	err := ts.client.Post(context.Background(), "/api/cancel/no-such-job", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "Job not found") {
		t.Errorf("cancel unknown job: %v, want not found", err)
	}
}

func TestServer_FreeTierPageLimit(t *testing.T) {
	// Auth enabled and no token sent: the caller is a free user.
	ts := newTestServer(t, mockConfigWithAuth)
	ctx := context.Background()
	dir := t.TempDir()

	var resp convertResp
	if err := ts.client.PostFile(ctx, "/api/convert", writePDF(t, dir, 5), nil, &resp); err != nil {
		t.Fatalf("convert small pdf: %v", err)
	}
	if resp.JobID == "" {
		t.Error("small document should convert on the free tier")
	}

	err := ts.client.PostFile(ctx, "/api/convert", writePDF(t, dir, 50), nil, &resp)
	if err == nil {
		t.Fatal("large document should be rejected on the free tier")
	}
	if !strings.Contains(err.Error(), "premium") {
		t.Errorf("rejection should mention premium: %v", err)
	}
}
